package memory

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/echocog/persona-core/internal/errs"
)

// Field names for the Milvus collection, adapted from
// core/memory/milvus/client.go's thought collection.
const (
	idField         = "record_id"
	contentField    = "content"
	importanceField = "importance"
	occurredField   = "occurred_at"
	vectorField     = "embedding"
)

// MilvusIndex implements VectorIndex over a Milvus collection, one per
// memory kind (episodic, semantic) so each can size/tune independently.
// Index type (HNSW) and metric (inner product, for normalized cosine
// similarity) are taken verbatim from core/memory/milvus/client.go.
type MilvusIndex struct {
	client         client.Client
	collectionName string
	dim            int
}

// NewMilvusIndex connects to addr and ensures collectionName exists with
// the given vector dimension.
func NewMilvusIndex(ctx context.Context, addr, collectionName string, dim int) (*MilvusIndex, error) {
	if addr == "" {
		return nil, fmt.Errorf("milvus address cannot be empty")
	}

	c, err := client.NewGrpcClient(ctx, addr)
	if err != nil {
		return nil, errs.Storage("connect to milvus", err)
	}

	idx := &MilvusIndex{client: c, collectionName: collectionName, dim: dim}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, errs.Storage("ensure milvus collection", err)
	}
	return idx, nil
}

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return err
	}
	if has {
		return m.client.LoadCollection(ctx, m.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "persona consciousness core vector memory",
		Fields: []*entity.Field{
			{Name: idField, DataType: entity.FieldTypeVarChar, PrimaryKey: true, AutoID: false, TypeParams: map[string]string{"max_length": "256"}},
			{Name: contentField, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "8192"}},
			{Name: importanceField, DataType: entity.FieldTypeDouble},
			{Name: occurredField, DataType: entity.FieldTypeInt64},
			{Name: vectorField, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dim)}},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return err
	}

	idx, err := entity.NewIndexHNSW(entity.IP, 16, 256)
	if err != nil {
		return err
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, vectorField, idx, false); err != nil {
		return err
	}
	return m.client.LoadCollection(ctx, m.collectionName, false)
}

// Upsert deletes any existing row with rec.ID, then inserts rec. Milvus
// has no native upsert-by-primary-key for this client version, so a
// delete-then-insert is used, matching the StoreThoughts flush pattern
// in core/memory/milvus/client.go.
func (m *MilvusIndex) Upsert(ctx context.Context, rec Record) error {
	_ = m.client.Delete(ctx, m.collectionName, "", fmt.Sprintf("%s == \"%s\"", idField, rec.ID))

	idColumn := entity.NewColumnVarChar(idField, []string{rec.ID})
	contentColumn := entity.NewColumnVarChar(contentField, []string{rec.Content})
	importanceColumn := entity.NewColumnDouble(importanceField, []float64{rec.Importance})
	occurredColumn := entity.NewColumnInt64(occurredField, []int64{rec.OccurredAt})
	vectorColumn := entity.NewColumnFloatVector(vectorField, m.dim, [][]float32{rec.Embedding})

	if _, err := m.client.Insert(ctx, m.collectionName, "", idColumn, contentColumn, importanceColumn, occurredColumn, vectorColumn); err != nil {
		return errs.Storage("milvus insert", err)
	}
	return m.client.Flush(ctx, m.collectionName, false)
}

// Search returns up to topK nearest records by inner-product similarity.
func (m *MilvusIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Record, error) {
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, err
	}

	results, err := m.client.Search(
		ctx, m.collectionName, nil, "",
		[]string{idField, contentField, importanceField, occurredField, vectorField},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		vectorField, entity.IP, topK, sp,
	)
	if err != nil {
		return nil, errs.Transient("milvus search", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	vectorColumn, _ := results[0].Fields.GetColumn(vectorField).(*entity.ColumnFloatVector)

	recs := make([]Record, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		id, _ := results[0].Fields.GetColumn(idField).Get(i)
		content, _ := results[0].Fields.GetColumn(contentField).Get(i)
		importance, _ := results[0].Fields.GetColumn(importanceField).GetAsDouble(i)
		occurred, _ := results[0].Fields.GetColumn(occurredField).GetAsInt64(i)

		var embedding []float32
		if vectorColumn != nil && i < len(vectorColumn.Data()) {
			embedding = vectorColumn.Data()[i]
		}

		recs = append(recs, Record{
			ID:         fmt.Sprintf("%v", id),
			Content:    fmt.Sprintf("%v", content),
			Importance: importance,
			OccurredAt: occurred,
			Embedding:  embedding,
		})
	}
	return recs, nil
}

// Delete removes a record by id.
func (m *MilvusIndex) Delete(ctx context.Context, id string) error {
	return m.client.Delete(ctx, m.collectionName, "", fmt.Sprintf("%s == \"%s\"", idField, id))
}
