// Package authoring implements the course editing operations: building and
// reshaping the course -> module -> section tree before it is saved.
package authoring

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

var (
	// ErrModuleIndex indicates the module position does not exist.
	ErrModuleIndex = errors.New("module index out of range")
	// ErrSectionIndex indicates the section position does not exist.
	ErrSectionIndex = errors.New("section index out of range")
)

// ValidationError lists every required field that is missing from a draft.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Draft is an editable copy of a course tree.
type Draft struct {
	course models.Course
}

// NewDraft deep-copies the course so edits never alias the caller's slices.
func NewDraft(course models.Course) *Draft {
	return &Draft{course: cloneCourse(course)}
}

// Course returns a copy of the edited tree with positions renumbered.
func (d *Draft) Course() models.Course {
	course := cloneCourse(d.course)
	for m := range course.Modules {
		course.Modules[m].Position = m
		for s := range course.Modules[m].Sections {
			course.Modules[m].Sections[s].Position = s
		}
	}
	return course
}

// AddModule appends an empty module and returns its index.
func (d *Draft) AddModule(title string) int {
	d.course.Modules = append(d.course.Modules, models.Module{Title: strings.TrimSpace(title)})
	return len(d.course.Modules) - 1
}

// RemoveModule splices the module out of the course.
func (d *Draft) RemoveModule(m int) error {
	if err := d.checkModule(m); err != nil {
		return err
	}
	d.course.Modules = append(d.course.Modules[:m], d.course.Modules[m+1:]...)
	return nil
}

// AddSection appends a section to the module and returns its index.
func (d *Draft) AddSection(m int, section models.Section) (int, error) {
	if err := d.checkModule(m); err != nil {
		return 0, err
	}
	section.ID = 0
	section.ModuleID = 0
	module := &d.course.Modules[m]
	module.Sections = append(module.Sections, cloneSection(section))
	return len(module.Sections) - 1, nil
}

// RemoveSection splices the section out of its module.
func (d *Draft) RemoveSection(m, s int) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	module := &d.course.Modules[m]
	module.Sections = append(module.Sections[:s], module.Sections[s+1:]...)
	return nil
}

// MoveSectionUp swaps the section with its predecessor. The first section stays put.
func (d *Draft) MoveSectionUp(m, s int) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	if s == 0 {
		return nil
	}
	sections := d.course.Modules[m].Sections
	sections[s-1], sections[s] = sections[s], sections[s-1]
	return nil
}

// MoveSectionDown swaps the section with its successor. The last section stays put.
func (d *Draft) MoveSectionDown(m, s int) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	sections := d.course.Modules[m].Sections
	if s == len(sections)-1 {
		return nil
	}
	sections[s], sections[s+1] = sections[s+1], sections[s]
	return nil
}

// AttachMaterialURL appends an uploaded learning-material file URL.
func (d *Draft) AttachMaterialURL(m, s int, url string) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	section := &d.course.Modules[m].Sections[s]
	section.LearningMaterialURLs = append(section.LearningMaterialURLs, url)
	return nil
}

// AttachChallengeURL appends an uploaded code-challenge file URL.
func (d *Draft) AttachChallengeURL(m, s int, url string) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	section := &d.course.Modules[m].Sections[s]
	section.CodeChallengeURLs = append(section.CodeChallengeURLs, url)
	return nil
}

// AddVideoReference appends a free-text video URL. It is not validated here;
// YouTubeID resolves it when the section is rendered.
func (d *Draft) AddVideoReference(m, s int, url string) error {
	if err := d.checkSection(m, s); err != nil {
		return err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	section := &d.course.Modules[m].Sections[s]
	section.VideoReferences = append(section.VideoReferences, url)
	return nil
}

// Validate applies the required-field rules of the course form.
func (d *Draft) Validate() error {
	var missing []string
	require := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	require(d.course.CourseName, "courseName")
	require(d.course.CourseCode, "courseId")
	require(d.course.CourseDescription, "courseDescription")
	require(d.course.CourseDuration, "courseDuration")

	for m, module := range d.course.Modules {
		require(module.Title, fmt.Sprintf("modules[%d].title", m))
		for s, section := range module.Sections {
			prefix := fmt.Sprintf("modules[%d].sections[%d]", m, s)
			require(section.SectionName, prefix+".sectionName")
			require(section.LearningMaterialNotes, prefix+".learningMaterialNotes")
			require(section.CodeChallengeInstructions, prefix+".codeChallengeInstructions")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// CloneAsNew copies the tree for "save as new course": identities, instructors and
// enrolments are stripped and the supplied code replaces the old one.
func (d *Draft) CloneAsNew(code string) models.Course {
	course := d.Course()
	course.ID = 0
	course.CourseCode = code
	course.ExternalID = nil
	course.Instructors = nil
	course.EnrolledStudents = nil
	course.CreatedAt = time.Time{}
	course.UpdatedAt = time.Time{}
	for m := range course.Modules {
		course.Modules[m].ID = 0
		course.Modules[m].CourseID = 0
		for s := range course.Modules[m].Sections {
			course.Modules[m].Sections[s].ID = 0
			course.Modules[m].Sections[s].ModuleID = 0
		}
	}
	return course
}

func (d *Draft) checkModule(m int) error {
	if m < 0 || m >= len(d.course.Modules) {
		return ErrModuleIndex
	}
	return nil
}

func (d *Draft) checkSection(m, s int) error {
	if err := d.checkModule(m); err != nil {
		return err
	}
	if s < 0 || s >= len(d.course.Modules[m].Sections) {
		return ErrSectionIndex
	}
	return nil
}

func cloneCourse(course models.Course) models.Course {
	clone := course
	clone.Instructors = append([]models.User(nil), course.Instructors...)
	clone.EnrolledStudents = append([]models.User(nil), course.EnrolledStudents...)
	clone.Modules = make([]models.Module, len(course.Modules))
	for m, module := range course.Modules {
		clone.Modules[m] = module
		clone.Modules[m].Sections = make([]models.Section, len(module.Sections))
		for s, section := range module.Sections {
			clone.Modules[m].Sections[s] = cloneSection(section)
		}
	}
	return clone
}

func cloneSection(section models.Section) models.Section {
	section.LearningMaterialURLs = cloneURLs(section.LearningMaterialURLs)
	section.CodeChallengeURLs = cloneURLs(section.CodeChallengeURLs)
	section.VideoReferences = cloneURLs(section.VideoReferences)
	return section
}

func cloneURLs(urls datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if urls == nil {
		return datatypes.JSONSlice[string]{}
	}
	return append(datatypes.JSONSlice[string]{}, urls...)
}
