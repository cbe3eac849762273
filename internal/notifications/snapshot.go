package notifications

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/charlesng35/notifystream/internal/models"
)

// Snapshotter renders a domain object as a flat field map for the payload.
type Snapshotter interface {
	Snapshot(instance any) (map[string]any, error)
}

// SnapshotterFunc adapts a function to Snapshotter.
type SnapshotterFunc func(instance any) (map[string]any, error)

// Snapshot calls f.
func (f SnapshotterFunc) Snapshot(instance any) (map[string]any, error) {
	return f(instance)
}

// DefaultSnapshotter extracts the exported fields of structs (honouring json
// tags) and copies maps. Values are normalised to their JSON form so snapshots
// compare the same way they are stored.
type DefaultSnapshotter struct{}

// Snapshot implements Snapshotter.
func (DefaultSnapshotter) Snapshot(instance any) (map[string]any, error) {
	if instance == nil {
		return map[string]any{}, nil
	}

	kind := reflect.Indirect(reflect.ValueOf(instance)).Kind()
	if kind != reflect.Struct && kind != reflect.Map && kind != reflect.Invalid {
		return nil, fmt.Errorf("snapshot: unsupported instance kind %s", kind)
	}

	raw, err := json.Marshal(instance)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode instance: %w", err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot: instance is not an object: %w", err)
	}
	return out, nil
}

// Diff lists the fields present in both snapshots whose values differ.
func Diff(before, after map[string]any) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)
	for field, newValue := range after {
		oldValue, ok := before[field]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(oldValue, newValue) {
			changes[field] = models.FieldChange{Old: oldValue, New: newValue}
		}
	}
	return changes
}

// modelName derives a lowercase type name for the instance; maps have none.
func modelName(instance any) string {
	if instance == nil {
		return ""
	}
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return ""
	}
	return strings.ToLower(t.Name())
}
