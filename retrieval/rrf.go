package retrieval

import "sort"

const rrfK = 60 // RRF constant (standard value from literature)

// Arm is one named ranked result list to fuse, with its fusion weight.
type Arm struct {
	Name    string
	Results []Result
	Weight  float64
}

// FusedResultInfo holds per-result method contribution metadata.
type FusedResultInfo struct {
	Methods   []string `json:"methods"`
	VecRank   int      `json:"vec_rank,omitempty"`
	FTSRank   int      `json:"fts_rank,omitempty"`
	GraphRank int      `json:"graph_rank,omitempty"`
}

// fuseRRF implements Reciprocal Rank Fusion to combine results from
// multiple retrieval arms. Each arm is ranked independently (1-based);
// an unseen rank contributes 0. Combined score = sum(weight_i / (k + rank_i)).
// Results are keyed by ChunkID, a content-addressed string id rather
// than an auto-increment row number.
func fuseRRF(arms []Arm, maxResults int) ([]Result, map[string]FusedResultInfo) {
	type fusedEntry struct {
		result Result
		score  float64
		info   FusedResultInfo
	}

	fused := make(map[string]*fusedEntry)
	for _, a := range arms {
		for rank, r := range a.Results {
			entry, ok := fused[r.ChunkID]
			if !ok {
				entry = &fusedEntry{result: r}
				fused[r.ChunkID] = entry
			}
			entry.score += a.Weight / float64(rrfK+rank+1)
			entry.info.Methods = append(entry.info.Methods, a.Name)
			switch a.Name {
			case "vector":
				entry.info.VecRank = rank + 1
			case "fts":
				entry.info.FTSRank = rank + 1
			case "graph":
				entry.info.GraphRank = rank + 1
			}
		}
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	results := make([]Result, len(entries))
	infoMap := make(map[string]FusedResultInfo, len(entries))
	for i, e := range entries {
		results[i] = e.result
		results[i].Score = e.score
		infoMap[e.result.ChunkID] = e.info
	}
	return results, infoMap
}
