package search

import (
	"sort"
)

// Ranker 混合排序器
// 加权、去重、过滤、排序、截断，并统计各源贡献
type Ranker struct {
	weights Weights
}

// NewRanker 创建排序器
func NewRanker(weights Weights) *Ranker {
	return &Ranker{weights: weights}
}

// Rank 合并各源结果并按加权得分排序
// 去重规则：先按ID合并，再按归一化标题跨源合并，保留final_score最高的实例；
// 分数不做加和或平均
func (r *Ranker) Rank(resultsBySource map[Source][]Result, limit int, minScore float64) ([]RankedResult, Stats) {
	// 1. 展平并计算加权得分
	flat := make([]RankedResult, 0)
	for source, results := range resultsBySource {
		weight := r.weights.Weight(source)
		for _, res := range results {
			flat = append(flat, RankedResult{
				Result:     res,
				FinalScore: res.Score * weight,
			})
		}
	}

	// 2. 按ID去重，保留加权得分最高的实例
	byID := make(map[string]RankedResult)
	order := make([]string, 0, len(flat))
	for _, rr := range flat {
		existing, ok := byID[rr.ID]
		if !ok {
			byID[rr.ID] = rr
			order = append(order, rr.ID)
			continue
		}
		if rr.FinalScore > existing.FinalScore {
			byID[rr.ID] = rr
		}
	}

	// 3. 跨源标题去重：ID命名空间不同的源返回同一逻辑条目时按标题合并
	// 仅当标题组跨越多个源时折叠为单条；同源同标题视为不同条目
	survivors := r.collapseByTitle(byID, order)

	// 4. 过滤低于阈值的结果
	kept := survivors[:0]
	for _, rr := range survivors {
		if rr.FinalScore >= minScore {
			kept = append(kept, rr)
		}
	}

	// 5. 排序：加权得分降序 → 源权重降序 → 标题升序 → ID升序
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].FinalScore != kept[j].FinalScore {
			return kept[i].FinalScore > kept[j].FinalScore
		}
		wi, wj := r.weights.Weight(kept[i].Source), r.weights.Weight(kept[j].Source)
		if wi != wj {
			return wi > wj
		}
		if kept[i].Title != kept[j].Title {
			return kept[i].Title < kept[j].Title
		}
		return kept[i].ID < kept[j].ID
	})

	// 6. 统计基于截断前的存活集
	stats := Stats{Total: len(kept)}
	for _, rr := range kept {
		switch rr.Source {
		case SourceDatabase:
			stats.DatabaseCount++
		case SourceRAG:
			stats.RAGCount++
		case SourceMCP:
			stats.MCPCount++
		}
	}

	// 7. 截断到limit
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	return kept, stats
}

// collapseByTitle 跨源标题折叠
func (r *Ranker) collapseByTitle(byID map[string]RankedResult, order []string) []RankedResult {
	type titleGroup struct {
		ids     []string
		sources map[Source]bool
	}

	groups := make(map[string]*titleGroup)
	for _, id := range order {
		rr, ok := byID[id]
		if !ok {
			continue
		}
		key := normalizeTitle(rr.Title)
		if key == "" {
			// 无标题的条目不参与标题合并
			key = "\x00" + rr.ID
		}
		g, exists := groups[key]
		if !exists {
			g = &titleGroup{sources: make(map[Source]bool)}
			groups[key] = g
		}
		g.ids = append(g.ids, id)
		g.sources[rr.Source] = true
	}

	survivors := make([]RankedResult, 0, len(byID))
	for _, id := range order {
		rr, ok := byID[id]
		if !ok {
			continue
		}
		key := normalizeTitle(rr.Title)
		if key == "" {
			key = "\x00" + rr.ID
		}
		g := groups[key]
		if len(g.sources) <= 1 {
			// 单源组：同一命名空间内ID已去重，全部保留
			survivors = append(survivors, rr)
			continue
		}
		// 多源组：只保留加权得分最高者
		if id == r.bestOfGroup(byID, g.ids) {
			survivors = append(survivors, rr)
		}
	}
	return survivors
}

// bestOfGroup 组内最高加权得分的条目ID，平分时靠源权重与ID定序
func (r *Ranker) bestOfGroup(byID map[string]RankedResult, ids []string) string {
	best := ids[0]
	for _, id := range ids[1:] {
		a, b := byID[id], byID[best]
		if a.FinalScore != b.FinalScore {
			if a.FinalScore > b.FinalScore {
				best = id
			}
			continue
		}
		wa, wb := r.weights.Weight(a.Source), r.weights.Weight(b.Source)
		if wa > wb || (wa == wb && a.ID < b.ID) {
			best = id
		}
	}
	return best
}
