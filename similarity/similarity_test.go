package similarity

import "testing"

func TestDiceIdentical(t *testing.T) {
	if got := Dice("same", "same"); got != 1.0 {
		t.Errorf("Dice(same,same) = %v", got)
	}
}

func TestDiceEmptyStrings(t *testing.T) {
	if got := Dice("", ""); got != 1.0 {
		t.Errorf("Dice(\"\",\"\") = %v, want 1.0", got)
	}
	if got := Dice("a", ""); got != 0.0 {
		t.Errorf("Dice(a,\"\") = %v, want 0.0", got)
	}
}

func TestDiceShortStringsPadded(t *testing.T) {
	// Single-character strings must still produce a comparable score
	// instead of dividing by zero.
	got := Dice("a", "a")
	if got != 1.0 {
		t.Errorf("Dice(a,a) = %v, want 1.0", got)
	}
	got = Dice("a", "b")
	if got != 0.0 {
		t.Errorf("Dice(a,b) = %v, want 0.0", got)
	}
}

func TestTokenSortOrderIndependence(t *testing.T) {
	a := TokenSort("John Smith", "Smith John")
	if a != 1.0 {
		t.Errorf("TokenSort reordered tokens = %v, want 1.0", a)
	}
}

func TestInitialsMatch(t *testing.T) {
	if !InitialsMatch("John Smith", "J. Smith") {
		t.Error("expected initials to match")
	}
	if InitialsMatch("John Smith", "Mary Jones") {
		t.Error("expected initials to differ")
	}
}

func TestPersonSimilarityFloor(t *testing.T) {
	score := PersonSimilarity("John Smith", "J. Smith")
	if score < personInitialFloor {
		t.Errorf("PersonSimilarity = %v, want >= %v", score, personInitialFloor)
	}

	bob := PersonSimilarity("Bob", "John Smith")
	if bob >= personInitialFloor {
		t.Errorf("unrelated names scored %v, expected low score", bob)
	}
}

func TestOrganizationAbbreviationExpansion(t *testing.T) {
	score := OrganizationSimilarity("Acme Corp", "ACME CORPORATION")
	if score < 0.85 {
		t.Errorf("OrganizationSimilarity = %v, want >= 0.85", score)
	}
}

func TestCaseNumbersMatch(t *testing.T) {
	if CaseNumbersMatch("12-CV-0456", "12 cv 0456") != 1.0 {
		t.Error("expected normalized case numbers to match")
	}
	if CaseNumbersMatch("12-CV-0456", "12-CV-0457") != 0.0 {
		t.Error("expected differing case numbers to not match")
	}
}

func TestAmountsMatchTolerance(t *testing.T) {
	if AmountsMatch("$1,000.00", "$1,005.00", 0.01) != 1.0 {
		t.Error("expected amounts within 1% tolerance to match")
	}
	if AmountsMatch("$1,000.00", "$1,200.00", 0.01) != 0.0 {
		t.Error("expected amounts outside tolerance to not match")
	}
	if AmountsMatch("not a number", "$5.00", 0.01) != 0.0 {
		t.Error("expected unparsable amount to not match")
	}
}

func TestLocationContains(t *testing.T) {
	if !Contains("New York", "New York City") {
		t.Error("expected shorter location to be contained")
	}
	if Contains("Los Angeles", "New York City") {
		t.Error("expected unrelated locations to not contain")
	}
}

func TestWithClusterBoostCapped(t *testing.T) {
	if got := WithClusterBoost(0.99, true); got != 1.0 {
		t.Errorf("WithClusterBoost = %v, want capped at 1.0", got)
	}
	if got := WithClusterBoost(0.5, false); got != 0.5 {
		t.Errorf("WithClusterBoost without sameCluster changed score: %v", got)
	}
}

func TestTypeAwareDispatch(t *testing.T) {
	if TypeAware(CaseNumber, "A-1", "a 1") != 1.0 {
		t.Error("expected case_number dispatch to normalize")
	}
	if TypeAware(Other, "hello", "hello") != 1.0 {
		t.Error("expected default dispatch to use Dice")
	}
}
