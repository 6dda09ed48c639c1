package pinot

import (
	"fmt"
	"slices"
)

// GeneratedQuery is the broker payload produced by the query generator. The
// split carries it without interpreting it.
type GeneratedQuery struct {
	table                 string
	query                 string
	expectedColumnIndices []int
	groupByClauses        int
	haveFilter            bool
	isQueryShort          bool
}

type GeneratedQueryParams struct {
	Table                 string
	Query                 string
	ExpectedColumnIndices []int
	GroupByClauses        int
	HaveFilter            bool
	IsQueryShort          bool
}

func NewGeneratedQuery(params GeneratedQueryParams) *GeneratedQuery {
	return &GeneratedQuery{
		table:                 params.Table,
		query:                 params.Query,
		expectedColumnIndices: slices.Clone(params.ExpectedColumnIndices),
		groupByClauses:        params.GroupByClauses,
		haveFilter:            params.HaveFilter,
		isQueryShort:          params.IsQueryShort,
	}
}

func (q *GeneratedQuery) Table() string { return q.table }

func (q *GeneratedQuery) Query() string { return q.query }

// ExpectedColumnIndices maps broker result columns to output columns. The
// returned slice is a copy.
func (q *GeneratedQuery) ExpectedColumnIndices() []int {
	return slices.Clone(q.expectedColumnIndices)
}

func (q *GeneratedQuery) GroupByClauses() int { return q.groupByClauses }

func (q *GeneratedQuery) HaveFilter() bool { return q.haveFilter }

func (q *GeneratedQuery) IsQueryShort() bool { return q.isQueryShort }

// Params returns the values the query was built from.
func (q *GeneratedQuery) Params() GeneratedQueryParams {
	return GeneratedQueryParams{
		Table:                 q.table,
		Query:                 q.query,
		ExpectedColumnIndices: slices.Clone(q.expectedColumnIndices),
		GroupByClauses:        q.groupByClauses,
		HaveFilter:            q.haveFilter,
		IsQueryShort:          q.isQueryShort,
	}
}

func (q *GeneratedQuery) Equal(other *GeneratedQuery) bool {
	if q == nil || other == nil {
		return q == other
	}
	return q.table == other.table &&
		q.query == other.query &&
		slices.Equal(q.expectedColumnIndices, other.expectedColumnIndices) &&
		q.groupByClauses == other.groupByClauses &&
		q.haveFilter == other.haveFilter &&
		q.isQueryShort == other.isQueryShort
}

func (q *GeneratedQuery) String() string {
	return fmt.Sprintf("GeneratedQuery{table=%s, query=%q, expectedColumnIndices=%v, groupByClauses=%d, haveFilter=%t, isQueryShort=%t}",
		q.table, q.query, q.expectedColumnIndices, q.groupByClauses, q.haveFilter, q.isQueryShort)
}
