package batch

import (
	"encoding/json"
	"fmt"
	"os"
)

type document struct {
	Users []UserRecord `json:"users"`
}

// Load reads the user batch from a JSON document of the form
// {"users": [...]}. Only document-level problems (missing file, JSON that
// does not parse) fail the load; a type-malformed entry comes back as a
// record whose Validate fails, so the batch continues around it.
func Load(path string) ([]UserRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}

	return doc.Users, nil
}
