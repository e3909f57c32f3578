package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// Payload keys written on every point.
const (
	payloadChunkID  = "chunk_id"
	payloadDocID    = "doc_id"
	payloadModel    = "model"
	payloadText     = "text"
	payloadMetadata = "meta_json"

	// filterPrefix marks the string forms used for keyword filtering.
	filterPrefix = "f_"
)

// pointNamespace derives point ids; Qdrant only accepts integers or UUIDs.
var pointNamespace = uuid.MustParse("6f0b2c3e-8a51-4c1e-9a57-2f4d1c7e5b90")

// PointID maps a chunk id to its deterministic UUIDv5 point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// FilterField returns the payload key holding the filterable form of a
// metadata field.
func FilterField(key string) string {
	return filterPrefix + key
}

// buildPoint converts an entry into a Qdrant point.
func buildPoint(entry domain.IndexEntry) (*qdrant.PointStruct, error) {
	payload, err := buildPayload(entry)
	if err != nil {
		return nil, err
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(entry.ChunkID)),
		Vectors: qdrant.NewVectors(entry.Vector...),
		Payload: payload,
	}, nil
}

// buildPayload stores the typed metadata as JSON plus one keyword field
// per metadata key so filters run server-side.
func buildPayload(entry domain.IndexEntry) (map[string]*qdrant.Value, error) {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling metadata of %s: %w", domain.ErrInvalidArgument, entry.ChunkID, err)
	}

	payload := map[string]*qdrant.Value{
		payloadChunkID:  stringValue(entry.ChunkID),
		payloadDocID:    stringValue(entry.DocumentID),
		payloadModel:    stringValue(entry.Model),
		payloadText:     stringValue(entry.Text),
		payloadMetadata: stringValue(string(metadataJSON)),
	}
	for key := range entry.Metadata {
		vals, ok := entry.Metadata.Values(key)
		if !ok {
			continue
		}
		if len(vals) == 1 {
			payload[FilterField(key)] = stringValue(vals[0])
			continue
		}
		list := make([]*qdrant.Value, len(vals))
		for i, v := range vals {
			list[i] = stringValue(v)
		}
		payload[FilterField(key)] = &qdrant.Value{
			Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: list}},
		}
	}
	return payload, nil
}

// buildFilter translates a QueryFilter into keyword conditions: every
// field must match, and a field with several values matches any of them.
func buildFilter(filter domain.QueryFilter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	must := make([]*qdrant.Condition, 0, len(fields))
	for _, field := range fields {
		values := filter[field]
		if len(values) == 1 {
			must = append(must, qdrant.NewMatch(FilterField(field), values[0]))
			continue
		}
		must = append(must, qdrant.NewMatchKeywords(FilterField(field), values...))
	}
	return &qdrant.Filter{Must: must}
}

// documentFilter selects every point of a document.
func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocID, documentID)}}
}

// entryFromPayload rebuilds an entry from a point payload.
// Vectors are not requested from the server, so Vector stays empty.
func entryFromPayload(payload map[string]*qdrant.Value) (domain.IndexEntry, error) {
	entry := domain.IndexEntry{
		ChunkID:    payload[payloadChunkID].GetStringValue(),
		DocumentID: payload[payloadDocID].GetStringValue(),
		Model:      payload[payloadModel].GetStringValue(),
		Text:       payload[payloadText].GetStringValue(),
		Metadata:   domain.Metadata{},
	}
	if raw := payload[payloadMetadata].GetStringValue(); raw != "" {
		var bag map[string]any
		if err := json.Unmarshal([]byte(raw), &bag); err != nil {
			return domain.IndexEntry{}, fmt.Errorf("%w: point %s metadata: %w", domain.ErrIndexIO, entry.ChunkID, err)
		}
		entry.Metadata = domain.NormaliseMetadata(bag)
	}
	return entry, nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}
