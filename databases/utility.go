package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	if skip < 0 {
		skip = 0
	}
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// PaginatedOpts builds find options for page/limit list endpoints, sorted by
// the given field (descending when desc is true). Page numbering starts at 1.
func PaginatedOpts(limit, page int, sortField string, desc bool) *options.FindOptions {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	if sortField != "" {
		order := 1
		if desc {
			order = -1
		}
		opts.SetSort(bson.D{{Key: sortField, Value: order}})
	}
	return opts
}
