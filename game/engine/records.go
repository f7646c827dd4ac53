package engine

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const tokenSchema = `{
	"type": "object",
	"properties": {
		"i": {"type": "integer"},
		"j": {"type": "integer"},
		"serial": {"type": "integer", "minimum": 0}
	},
	"required": ["i", "j", "serial"]
}`

const pointSchema = `{
	"type": "object",
	"properties": {
		"i": {"type": "number"},
		"j": {"type": "number"}
	},
	"required": ["i", "j"]
}`

var recordSchemas = map[string]*jsonschema.Schema{
	RecordCache: jsonschema.MustCompileString("https://geocache.world/schemas/cache.json", `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "array",
		"items": {
			"type": "array",
			"items": [
				{"type": "string", "pattern": "^-?[0-9]+,-?[0-9]+$"},
				{"type": "string"}
			],
			"minItems": 2,
			"additionalItems": false
		}
	}`),
	RecordInventory: jsonschema.MustCompileString("https://geocache.world/schemas/inventory.json", `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "array",
		"items": `+tokenSchema+`
	}`),
	RecordLocation: jsonschema.MustCompileString("https://geocache.world/schemas/loc.json", `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"allOf": [`+pointSchema+`]
	}`),
	RecordTrail: jsonschema.MustCompileString("https://geocache.world/schemas/trail.json", `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "array",
		"minItems": 1,
		"items": `+pointSchema+`
	}`),
}

// persistedPoint is the on-disk shape of a location: i is latitude, j is longitude
type persistedPoint struct {
	I float64 `json:"i"`
	J float64 `json:"j"`
}

func toPersistedPoint(p LatLng) persistedPoint {
	return persistedPoint{I: p.Lat, J: p.Lng}
}

func (p persistedPoint) latLng() LatLng {
	return LatLng{Lat: p.I, Lng: p.J}
}

// persistedState is the decoded form of the four records
type persistedState struct {
	Caches    []SnapshotEntry
	Inventory []Token
	Location  LatLng
	Trail     []LatLng
}

// encodeRecords renders the state as the four string records
func encodeRecords(ps persistedState) (map[string]string, error) {
	pairs := make([][2]string, 0, len(ps.Caches))
	for _, entry := range ps.Caches {
		pairs = append(pairs, [2]string{entry.Key, string(entry.Snapshot)})
	}
	inventory := ps.Inventory
	if inventory == nil {
		inventory = []Token{}
	}
	trail := make([]persistedPoint, 0, len(ps.Trail))
	for _, p := range ps.Trail {
		trail = append(trail, toPersistedPoint(p))
	}

	values := map[string]any{
		RecordCache:     pairs,
		RecordInventory: inventory,
		RecordLocation:  toPersistedPoint(ps.Location),
		RecordTrail:     trail,
	}
	records := make(map[string]string, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s record: %w", key, err)
		}
		records[key] = string(data)
	}
	return records, nil
}

// validateRecord checks raw against the record's schema and decodes it into out
func validateRecord(key, raw string, out any) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: %s record: %v", ErrCorruptState, key, err)
	}
	if err := recordSchemas[key].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s record: %v", ErrCorruptState, key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %s record: %v", ErrCorruptState, key, err)
	}
	return nil
}

// loadRecords reads all four records. found is false when the cache record is
// absent, meaning a fresh world; the other records are not read in that case.
func loadRecords(storage Storage) (ps persistedState, found bool, err error) {
	raw := make(map[string]string, 4)
	for _, key := range []string{RecordCache, RecordInventory, RecordLocation, RecordTrail} {
		value, ok, err := storage.Get(key)
		if err != nil {
			return ps, false, fmt.Errorf("read %s record: %w", key, err)
		}
		if !ok {
			if key == RecordCache {
				return ps, false, nil
			}
			return ps, false, fmt.Errorf("%w: %s record missing", ErrCorruptState, key)
		}
		raw[key] = value
	}

	var pairs [][]string
	if err := validateRecord(RecordCache, raw[RecordCache], &pairs); err != nil {
		return ps, false, err
	}
	for _, pair := range pairs {
		ps.Caches = append(ps.Caches, SnapshotEntry{Key: pair[0], Snapshot: Snapshot(pair[1])})
	}

	if err := validateRecord(RecordInventory, raw[RecordInventory], &ps.Inventory); err != nil {
		return ps, false, err
	}

	var loc persistedPoint
	if err := validateRecord(RecordLocation, raw[RecordLocation], &loc); err != nil {
		return ps, false, err
	}
	ps.Location = loc.latLng()

	var trail []persistedPoint
	if err := validateRecord(RecordTrail, raw[RecordTrail], &trail); err != nil {
		return ps, false, err
	}
	for _, p := range trail {
		ps.Trail = append(ps.Trail, p.latLng())
	}

	return ps, true, nil
}
