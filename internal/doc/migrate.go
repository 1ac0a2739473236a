package doc

import (
	"encoding/json"
	"fmt"
)

// migrateV1 maps a legacy v1 RawDoc (single top-level Threshold, no Rules)
// to the current v2 schema: one synthesized canonical rule for
// refs/heads/<default_branch>, carrying the old threshold against the
// full delegate set. Repositories with no project payload (no default
// branch to anchor) migrate with an empty rule set; the identity ref
// itself is never rule-governed (Validate rejects refs/rad/* patterns).
func migrateV1(raw RawDoc) (RawDoc, error) {
	if raw.Threshold == nil {
		return RawDoc{}, fmt.Errorf("%w: v1 document missing threshold", ErrInvalidDoc)
	}
	threshold := *raw.Threshold

	migrated := raw
	migrated.Version = 2
	migrated.Threshold = nil
	migrated.Rules = nil

	if rawProj, ok := raw.Payload[ProjectPayloadId]; ok {
		var proj ProjectPayload
		if err := json.Unmarshal(rawProj, &proj); err == nil && proj.DefaultBranch != "" {
			migrated.Rules = []RawRule{{
				Pattern:   "refs/heads/" + proj.DefaultBranch,
				AllowTag:  "delegates",
				Threshold: threshold,
			}}
		}
	}

	return migrated, nil
}
