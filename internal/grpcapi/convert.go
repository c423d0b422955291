package grpcapi

import (
	"fmt"
	"math"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"google.golang.org/protobuf/types/known/structpb"
)

// PostToStruct encodes p using its JSON field names. Numeric fields are
// carried as doubles and are exact up to 2^53.
func PostToStruct(p *postledger.Post) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"content_ref": p.ContentRef,
		"author":      string(p.Author),
		"created_at":  p.CreatedAt,
		"prev_hash":   p.PrevHash,
		"hash":        p.Hash,
	})
}

// StructToPost is the inverse of PostToStruct.
func StructToPost(st *structpb.Struct) (*postledger.Post, error) {
	f := st.GetFields()
	id, err := numberField(f, "id")
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, fmt.Errorf("field id: negative value %v", id)
	}
	createdAt, err := numberField(f, "created_at")
	if err != nil {
		return nil, err
	}
	return &postledger.Post{
		ID:         uint64(id),
		Title:      f["title"].GetStringValue(),
		ContentRef: f["content_ref"].GetStringValue(),
		Author:     postledger.Address(f["author"].GetStringValue()),
		CreatedAt:  int64(createdAt),
		PrevHash:   f["prev_hash"].GetStringValue(),
		Hash:       f["hash"].GetStringValue(),
	}, nil
}

// stringField reads an optional string field. Absent and null read as "".
func stringField(st *structpb.Struct, name string) (string, error) {
	v, ok := st.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("field %s must be a string", name)
	}
}

func numberField(f map[string]*structpb.Value, name string) (float64, error) {
	v, ok := f[name].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %s must be a number", name)
	}
	if math.IsNaN(v.NumberValue) || math.IsInf(v.NumberValue, 0) {
		return 0, fmt.Errorf("field %s is not finite", name)
	}
	return v.NumberValue, nil
}
