package plot

import "sort"

// SidebarRow is one numbered entry of the ranked criteria list.
type SidebarRow struct {
	Position    int    `json:"position"`
	Cluster     int    `json:"cluster"`
	Text        string `json:"label"`
	Rank        int    `json:"rank"`
	Count       int    `json:"count"`
	Color       string `json:"color"`
	Highlighted bool   `json:"highlighted"`
}

// Sidebar orders ranks by how many filtered points each cluster has, most
// first. Ties fall back to Rank, then cluster id. Duplicate clusters are
// kept as separate rows. Clusters missing from colors get white.
func Sidebar(ranks []RankEntry, counts map[int]int, colors map[int]string, hover Hover) []SidebarRow {
	sorted := make([]RankEntry, len(ranks))
	copy(sorted, ranks)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := counts[sorted[i].Cluster], counts[sorted[j].Cluster]
		if ci != cj {
			return ci > cj
		}
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].Cluster < sorted[j].Cluster
	})

	rows := make([]SidebarRow, len(sorted))
	for i, r := range sorted {
		color, ok := colors[r.Cluster]
		if !ok {
			color = "#ffffff"
		}
		rows[i] = SidebarRow{
			Position:    i + 1,
			Cluster:     r.Cluster,
			Text:        r.Text,
			Rank:        r.Rank,
			Count:       counts[r.Cluster],
			Color:       color,
			Highlighted: hover.Highlighted(r.Cluster),
		}
	}
	return rows
}

// DuplicateRankClusters returns cluster ids that appear more than once in
// ranks, ascending.
func DuplicateRankClusters(ranks []RankEntry) []int {
	seen := make(map[int]int, len(ranks))
	for _, r := range ranks {
		seen[r.Cluster]++
	}
	var dups []int
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Ints(dups)
	return dups
}
