package processing

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/storage"
)

// BuildUpdate turns an accepted record into a batched write request for the
// target's stored document. The filter matches address and port exactly; the
// update is a partial merge of the record's fields; upsert is always on so
// first-seen servers create their document, with the identity fields (ip,
// port) taken from the filter.
func BuildUpdate(target scanning.Target, rec *Record) storage.BulkUpdate {
	return storage.BulkUpdate{
		Filter: bson.M{
			"ip":   bson.M{"$eq": target.Addr.String()},
			"port": bson.M{"$eq": int32(target.Port)},
		},
		Update: bson.M{"$set": rec.Fields()},
		Upsert: true,
	}
}
