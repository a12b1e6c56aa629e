package marker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMarkerDocument_Layout(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	raw, err := bson.Marshal(markerDocument{ID: "ns/abc", Processed: true, ProcessedAt: at, Count: 5})
	require.NoError(t, err)

	doc := bson.Raw(raw)
	require.Equal(t, "ns/abc", doc.Lookup("_id").StringValue())
	require.True(t, doc.Lookup("p").Boolean())
	require.Equal(t, at, doc.Lookup("d").Time().UTC())
	require.Equal(t, int64(5), doc.Lookup("n").Int64())
}

func TestMongo_IsMarked(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("no document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "presplit.markers", mtest.FirstBatch))

		marked, err := NewMongo(mt.Coll).IsMarked(ctx, "app.events/abc")
		require.NoError(mt, err)
		require.False(mt, marked)

		filter := mt.GetStartedEvent().Command.Lookup("filter").Document()
		require.Equal(mt, "app.events/abc", filter.Lookup("_id").StringValue())
		require.True(mt, filter.Lookup("p").Boolean(), "only processed markers count")
	})

	mt.Run("processed document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "presplit.markers", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "app.events/abc"},
			{Key: "p", Value: true},
			{Key: "n", Value: int64(3)},
		}))

		marked, err := NewMongo(mt.Coll).IsMarked(ctx, "app.events/abc")
		require.NoError(mt, err)
		require.True(mt, marked)
	})

	mt.Run("query error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Message: "not authorized", Name: "Unauthorized",
		}))

		_, err := NewMongo(mt.Coll).IsMarked(ctx, "app.events/abc")
		require.ErrorContains(mt, err, "find marker app.events/abc")
	})
}

func TestMongo_Mark(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("inserts marker document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, NewMongo(mt.Coll).Mark(ctx, "app.events/abc", 9))

		evt := mt.GetStartedEvent()
		require.Equal(mt, "insert", evt.CommandName)
		doc := evt.Command.Lookup("documents", "0").Document()
		require.Equal(mt, "app.events/abc", doc.Lookup("_id").StringValue())
		require.True(mt, doc.Lookup("p").Boolean())
		require.Equal(mt, int64(9), doc.Lookup("n").Int64())
	})

	mt.Run("duplicate key keeps the first marker", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error collection: presplit.markers",
		}))

		require.NoError(mt, NewMongo(mt.Coll).Mark(ctx, "app.events/abc", 1))
	})

	mt.Run("other write errors fail", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 121, Message: "Document failed validation",
		}))

		err := NewMongo(mt.Coll).Mark(ctx, "app.events/abc", 1)
		require.ErrorContains(mt, err, "insert marker app.events/abc")
	})
}
