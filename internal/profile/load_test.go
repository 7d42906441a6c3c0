package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentindex/ami-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfiles(t *testing.T) {
	path := writeFile(t, "profiles.json", `{
		"profiles": [
			{"id": "open", "label": "Open", "default": true, "rules": {}},
			{"id": "enterprise", "label": "Enterprise", "rules": {
				"requireScored": true,
				"minOverallScorePercent": 60,
				"minScores": {"safety_guardrails": 4},
				"maxSourceAgeDays": 365
			}}
		]
	}`)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	ent := ProfileByID(profiles, "enterprise")
	require.NotNil(t, ent)
	assert.True(t, ent.Rules.RequireScored)
	require.NotNil(t, ent.Rules.MinOverallScorePercent)
	assert.Equal(t, 60, *ent.Rules.MinOverallScorePercent)
	assert.Equal(t, 4, ent.Rules.MinScores[model.DimSafetyGuardrails])

	def := DefaultProfile(profiles)
	require.NotNil(t, def)
	assert.Equal(t, "open", def.ID)

	assert.Nil(t, ProfileByID(profiles, "nope"))
}

func TestLoadProfiles_Missing(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadSourceCatalog(t *testing.T) {
	path := writeFile(t, "sources.json", `{
		"sources": [
			{"source_id": "src_a", "url": "https://example.com", "type": "url", "reliability": "primary"},
			{"source_id": "src_b", "url": "https://example.com/c", "type": "commit", "reliability": "secondary"}
		]
	}`)

	catalog, err := LoadSourceCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.True(t, catalog["src_a"].IsHardEvidence())
	assert.True(t, catalog["src_b"].IsHardEvidence()) // commit counts
	assert.Equal(t, model.ReliabilityPrimary, catalog["src_a"].Reliability)
}

func TestLoadRubrics(t *testing.T) {
	path := writeFile(t, "meta.json", `{
		"rubrics": {
			"execution_reliability": {
				"4": [{"id": "execution_reliability.4a", "text": "Retries with backoff"}]
			}
		}
	}`)

	rubrics, err := LoadRubrics(path)
	require.NoError(t, err)
	refs := rubrics.ValidRefs(model.DimExecutionReliability)
	require.NotNil(t, refs)
	_, ok := refs["execution_reliability.4a"]
	assert.True(t, ok)

	assert.Nil(t, rubrics.ValidRefs(model.DimObservability))
}

func TestLoadRubrics_BadJSON(t *testing.T) {
	path := writeFile(t, "meta.json", `{not json`)
	_, err := LoadRubrics(path)
	assert.Error(t, err)
}
