package authoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

func validSection(name string) models.Section {
	return models.Section{
		SectionName:               name,
		LearningMaterialNotes:     "notes for " + name,
		CodeChallengeInstructions: "solve " + name,
	}
}

func baseCourse() models.Course {
	return models.Course{
		ID:                12,
		CourseCode:        "CRS-1234",
		CourseName:        "Backend",
		CourseDescription: "Building services",
		CourseDuration:    "8 weeks",
		Instructors:       []models.User{{ID: 2}},
	}
}

func sectionNames(course models.Course, m int) []string {
	names := make([]string, 0, len(course.Modules[m].Sections))
	for _, section := range course.Modules[m].Sections {
		names = append(names, section.SectionName)
	}
	return names
}

func TestDraftBuildsTreeAndRenumbersPositions(t *testing.T) {
	draft := NewDraft(baseCourse())
	m := draft.AddModule("HTTP")
	for _, name := range []string{"Routing", "Middleware", "Testing"} {
		_, err := draft.AddSection(m, validSection(name))
		require.NoError(t, err)
	}

	require.NoError(t, draft.MoveSectionUp(m, 2))
	require.NoError(t, draft.MoveSectionDown(m, 0))

	course := draft.Course()
	require.Equal(t, []string{"Testing", "Routing", "Middleware"}, sectionNames(course, m))
	for i, section := range course.Modules[m].Sections {
		require.Equal(t, i, section.Position)
	}
	require.NoError(t, draft.Validate())
}

func TestDraftMoveAtEdgesIsNoop(t *testing.T) {
	draft := NewDraft(baseCourse())
	m := draft.AddModule("Data")
	_, _ = draft.AddSection(m, validSection("A"))
	_, _ = draft.AddSection(m, validSection("B"))

	require.NoError(t, draft.MoveSectionUp(m, 0))
	require.NoError(t, draft.MoveSectionDown(m, 1))
	require.Equal(t, []string{"A", "B"}, sectionNames(draft.Course(), m))

	require.ErrorIs(t, draft.MoveSectionUp(m, 2), ErrSectionIndex)
	require.ErrorIs(t, draft.MoveSectionDown(3, 0), ErrModuleIndex)
}

func TestDraftRemoveModuleAndSection(t *testing.T) {
	draft := NewDraft(baseCourse())
	first := draft.AddModule("One")
	second := draft.AddModule("Two")
	_, _ = draft.AddSection(second, validSection("X"))
	_, _ = draft.AddSection(second, validSection("Y"))

	require.NoError(t, draft.RemoveSection(second, 0))
	require.NoError(t, draft.RemoveModule(first))

	course := draft.Course()
	require.Len(t, course.Modules, 1)
	require.Equal(t, "Two", course.Modules[0].Title)
	require.Equal(t, []string{"Y"}, sectionNames(course, 0))
}

func TestDraftAttachesURLsWithoutAliasing(t *testing.T) {
	original := baseCourse()
	original.Modules = []models.Module{{Title: "M", Sections: []models.Section{validSection("S")}}}

	draft := NewDraft(original)
	require.NoError(t, draft.AttachMaterialURL(0, 0, "https://cdn.example.com/notes.pdf"))
	require.NoError(t, draft.AttachChallengeURL(0, 0, "https://cdn.example.com/challenge.zip"))
	require.NoError(t, draft.AddVideoReference(0, 0, "not even a url"))

	section := draft.Course().Modules[0].Sections[0]
	require.Equal(t, []string{"https://cdn.example.com/notes.pdf"}, []string(section.LearningMaterialURLs))
	require.Equal(t, []string{"https://cdn.example.com/challenge.zip"}, []string(section.CodeChallengeURLs))
	require.Equal(t, []string{"not even a url"}, []string(section.VideoReferences))
	require.Empty(t, original.Modules[0].Sections[0].LearningMaterialURLs)
}

func TestDraftValidateReportsMissingFields(t *testing.T) {
	course := baseCourse()
	course.CourseDuration = ""
	course.Modules = []models.Module{{Title: " ", Sections: []models.Section{{SectionName: "Only name"}}}}

	err := NewDraft(course).Validate()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	joined := strings.Join(validationErr.Fields, ",")
	require.Contains(t, joined, "courseDuration")
	require.Contains(t, joined, "modules[0].title")
	require.Contains(t, joined, "modules[0].sections[0].learningMaterialNotes")
	require.Contains(t, joined, "modules[0].sections[0].codeChallengeInstructions")
}

func TestCloneAsNewStripsIdentity(t *testing.T) {
	course := baseCourse()
	course.Modules = []models.Module{{ID: 5, CourseID: 12, Title: "M", Sections: []models.Section{{ID: 9, ModuleID: 5, SectionName: "S"}}}}

	clone := NewDraft(course).CloneAsNew("CRS-9999")
	require.Zero(t, clone.ID)
	require.Equal(t, "CRS-9999", clone.CourseCode)
	require.Empty(t, clone.Instructors)
	require.Zero(t, clone.Modules[0].ID)
	require.Zero(t, clone.Modules[0].CourseID)
	require.Zero(t, clone.Modules[0].Sections[0].ID)
	require.Equal(t, "S", clone.Modules[0].Sections[0].SectionName)
}
