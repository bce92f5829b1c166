package records

import "sort"

const topSourceLimit = 5

type MonthlyTotal struct {
	Month string
	Total int64
}

type SourceTotal struct {
	Source string
	Total  int64
	Count  int
}

// Analytics summarises a borrower's income.
type Analytics struct {
	TotalIncome   int64
	RecordCount   int
	AverageAmount int64
	// Monthly is ordered by month ascending.
	Monthly []MonthlyTotal
	// TopSources holds the largest sources by total, at most five.
	TopSources []SourceTotal
}

// Summarize computes analytics over recs.
func Summarize(recs []Record) Analytics {
	out := Analytics{Monthly: []MonthlyTotal{}, TopSources: []SourceTotal{}}
	if len(recs) == 0 {
		return out
	}

	months := make(map[string]int64)
	sources := make(map[string]*SourceTotal)
	for _, r := range recs {
		out.TotalIncome += r.Amount
		months[r.ReceivedOn.Format("2006-01")] += r.Amount
		st, ok := sources[r.Source]
		if !ok {
			st = &SourceTotal{Source: r.Source}
			sources[r.Source] = st
		}
		st.Total += r.Amount
		st.Count++
	}
	out.RecordCount = len(recs)
	out.AverageAmount = out.TotalIncome / int64(len(recs))

	for m, total := range months {
		out.Monthly = append(out.Monthly, MonthlyTotal{Month: m, Total: total})
	}
	sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month < out.Monthly[j].Month })

	for _, st := range sources {
		out.TopSources = append(out.TopSources, *st)
	}
	sort.Slice(out.TopSources, func(i, j int) bool {
		a, b := out.TopSources[i], out.TopSources[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Source < b.Source
	})
	if len(out.TopSources) > topSourceLimit {
		out.TopSources = out.TopSources[:topSourceLimit]
	}
	return out
}
