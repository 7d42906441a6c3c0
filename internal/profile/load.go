package profile

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/agentindex/ami-cli/internal/model"
)

// profilesFile mirrors the on-disk shape of the profiles config.
type profilesFile struct {
	Profiles []model.ComplianceProfile `json:"profiles"`
}

// catalogFile mirrors the on-disk shape of the source catalog.
type catalogFile struct {
	Sources []model.SourceEntry `json:"sources"`
}

// metaFile mirrors the on-disk shape of the methodology metadata, which
// carries the rubric table.
type metaFile struct {
	Rubrics model.Rubrics `json:"rubrics"`
}

// LoadProfiles reads the compliance profiles from a JSON file.
func LoadProfiles(path string) ([]model.ComplianceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	var f profilesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	return f.Profiles, nil
}

// ProfileByID returns the profile with the given id, or nil.
func ProfileByID(profiles []model.ComplianceProfile, id string) *model.ComplianceProfile {
	for i := range profiles {
		if profiles[i].ID == id {
			return &profiles[i]
		}
	}
	return nil
}

// DefaultProfile returns the profile flagged as default, or nil.
func DefaultProfile(profiles []model.ComplianceProfile) *model.ComplianceProfile {
	for i := range profiles {
		if profiles[i].Default {
			return &profiles[i]
		}
	}
	return nil
}

// LoadSourceCatalog reads the source catalog from a JSON file and indexes
// it by source_id.
func LoadSourceCatalog(path string) (model.SourceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	catalog := make(model.SourceCatalog, len(f.Sources))
	for _, s := range f.Sources {
		catalog[s.SourceID] = s
	}
	return catalog, nil
}

// LoadRubrics reads the rubric table from the methodology metadata file.
// Returns nil when the file carries no rubrics.
func LoadRubrics(path string) (model.Rubrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	var f metaFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	return f.Rubrics, nil
}
