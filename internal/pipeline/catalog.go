// internal/pipeline/catalog.go
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/models"
)

// Catalog reads entity and field metadata from a session. Nothing is cached
// between calls.
type Catalog struct {
	log logger.Logger
}

func NewCatalog(log logger.Logger) *Catalog {
	return &Catalog{log: log}
}

// ListEntities returns the names of eligible entities in the order the
// session listed them.
func (c *Catalog) ListEntities(ctx context.Context, session Session) ([]string, error) {
	descriptors, err := session.ListDescribableEntities(ctx)
	if err != nil {
		return nil, err
	}
	return EligibleEntityNames(descriptors), nil
}

// EligibleEntityNames keeps queryable, layoutable, non-hidden entities.
func EligibleEntityNames(descriptors []models.EntityDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Eligible() {
			names = append(names, d.Name)
		}
	}
	return names
}

// DescribeFields returns the filtered field list of one entity, or nil when
// the entity cannot be described on this session.
func (c *Catalog) DescribeFields(ctx context.Context, session Session, apiName string) []models.FieldDescriptor {
	raw, err := session.Describe(ctx, apiName)
	if err != nil {
		if errors.Is(err, models.ErrUnknownEntity) {
			c.log.Warn("UnknownEntity", map[string]interface{}{
				"entity": apiName,
				"error":  err.Error(),
			})
		} else {
			c.log.Warn("Describe failed", map[string]interface{}{
				"entity": apiName,
				"error":  err.Error(),
			})
		}
		return nil
	}
	if raw == nil {
		return nil
	}
	return FilterFields(raw)
}

// FilterFields projects raw descriptors onto the FieldDescriptor attribute
// set. Missing or mistyped attributes become nil or their zero default.
func FilterFields(raw []models.RawFieldDescriptor) []models.FieldDescriptor {
	fields := make([]models.FieldDescriptor, 0, len(raw))
	for _, r := range raw {
		fields = append(fields, models.FieldDescriptor{
			Name:           stringAttr(r, "name"),
			Label:          stringAttr(r, "label"),
			Type:           stringAttr(r, "type"),
			Nillable:       boolAttr(r, "nillable"),
			Createable:     boolAttr(r, "createable"),
			Updateable:     boolAttr(r, "updateable"),
			Length:         intAttr(r, "length"),
			Precision:      intAttr(r, "precision"),
			Scale:          intAttr(r, "scale"),
			PicklistValues: picklistAttr(r, "picklistValues"),
			ExternalID:     flagAttr(r, "externalId"),
			Unique:         flagAttr(r, "unique"),
			ReferenceTo:    stringsAttr(r, "referenceTo"),
		})
	}
	return fields
}

func stringAttr(r models.RawFieldDescriptor, key string) *string {
	if s, ok := r[key].(string); ok {
		return &s
	}
	return nil
}

func boolAttr(r models.RawFieldDescriptor, key string) *bool {
	if b, ok := r[key].(bool); ok {
		return &b
	}
	return nil
}

func flagAttr(r models.RawFieldDescriptor, key string) bool {
	b, _ := r[key].(bool)
	return b
}

func intAttr(r models.RawFieldDescriptor, key string) *int {
	var n int
	switch v := r[key].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	default:
		return nil
	}
	return &n
}

// picklistAttr accepts both the REST shape ([{"value": "New", ...}]) and a
// plain list of strings.
func picklistAttr(r models.RawFieldDescriptor, key string) []string {
	values := []string{}
	switch list := r[key].(type) {
	case []string:
		values = append(values, list...)
	case []interface{}:
		for _, item := range list {
			switch v := item.(type) {
			case string:
				values = append(values, v)
			case map[string]interface{}:
				if s, ok := v["value"].(string); ok {
					values = append(values, s)
				}
			}
		}
	}
	return values
}

func stringsAttr(r models.RawFieldDescriptor, key string) []string {
	switch list := r[key].(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// fieldMetadataBlock renders one JSON object per line for the prompt.
func fieldMetadataBlock(fields []models.FieldDescriptor) string {
	if fields == nil {
		return "(no field metadata available)"
	}
	if len(fields) == 0 {
		return "(entity has no fields)"
	}
	var out []byte
	for i, f := range fields {
		line, err := json.Marshal(f)
		if err != nil {
			line = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, line...)
	}
	return string(out)
}
