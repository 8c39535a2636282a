package models

import (
	"errors"
	"math"
	"time"

	"gorm.io/datatypes"
)

// ErrIndexOutOfRange indicates a (moduleIndex, sectionIndex) pair outside the progress tree.
var ErrIndexOutOfRange = errors.New("module or section index out of range")

// ProgressSection records completion of one course section.
type ProgressSection struct {
	SectionName    string     `json:"sectionName"`
	IsCompleted    bool       `json:"isCompleted"`
	CompletionTime *time.Time `json:"completionTime"`
}

// ProgressModule mirrors one course module.
type ProgressModule struct {
	Title    string            `json:"title"`
	Sections []ProgressSection `json:"sections"`
}

// ProgressRecord tracks one student's completion state for one course. Its tree mirrors
// the course modules/sections and is addressed positionally.
type ProgressRecord struct {
	ID         uint                                `gorm:"primaryKey" json:"id"`
	StudentID  uint                                `gorm:"not null;uniqueIndex:idx_progress_student_course" json:"studentId"`
	CourseID   uint                                `gorm:"not null;uniqueIndex:idx_progress_student_course;index" json:"courseId"`
	CourseName string                              `gorm:"size:255" json:"courseName"`
	Modules    datatypes.JSONSlice[ProgressModule] `json:"modules"`
	Student    User                                `gorm:"foreignKey:StudentID" json:"student"`
	CreatedAt  time.Time                           `json:"createdAt"`
	UpdatedAt  time.Time                           `json:"updatedAt"`
}

// NewProgressRecord builds an all-incomplete record shaped like the course.
func NewProgressRecord(studentID uint, course Course) ProgressRecord {
	record := ProgressRecord{
		StudentID:  studentID,
		CourseID:   course.ID,
		CourseName: course.CourseName,
	}
	record.Modules = shapeFromCourse(course)
	return record
}

func shapeFromCourse(course Course) datatypes.JSONSlice[ProgressModule] {
	modules := make(datatypes.JSONSlice[ProgressModule], 0, len(course.Modules))
	for _, module := range course.Modules {
		sections := make([]ProgressSection, 0, len(module.Sections))
		for _, section := range module.Sections {
			sections = append(sections, ProgressSection{SectionName: section.SectionName})
		}
		modules = append(modules, ProgressModule{Title: module.Title, Sections: sections})
	}
	return modules
}

// SetCompletion marks a section complete (stamping now) or incomplete (clearing the time).
func (r *ProgressRecord) SetCompletion(moduleIndex, sectionIndex int, completed bool, now time.Time) error {
	if !r.hasSection(moduleIndex, sectionIndex) {
		return ErrIndexOutOfRange
	}

	section := &r.Modules[moduleIndex].Sections[sectionIndex]
	section.IsCompleted = completed
	if completed {
		stamp := now.UTC()
		section.CompletionTime = &stamp
	} else {
		section.CompletionTime = nil
	}
	return nil
}

// IsSectionCompleted reports completion for the pair; missing positions count as incomplete.
func (r ProgressRecord) IsSectionCompleted(moduleIndex, sectionIndex int) bool {
	if !r.hasSection(moduleIndex, sectionIndex) {
		return false
	}
	return r.Modules[moduleIndex].Sections[sectionIndex].IsCompleted
}

// Counts returns completed and total section counts across all modules.
func (r ProgressRecord) Counts() (completed, total int) {
	for _, module := range r.Modules {
		for _, section := range module.Sections {
			total++
			if section.IsCompleted {
				completed++
			}
		}
	}
	return completed, total
}

// ProgressPercentage is round(100 * completed / total) clamped to [0, 100].
func (r ProgressRecord) ProgressPercentage() int {
	completed, total := r.Counts()
	return Percentage(completed, total)
}

// Percentage rounds completed/total to a whole percentage, 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	value := int(math.Round(100 * float64(completed) / float64(total)))
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

// Reshape rebuilds the tree after the course changed. Completion is carried over from
// the old section with the same module title and section name, then from the same
// section name at the same module position, then from the same position. An old
// section is carried over at most once.
func (r *ProgressRecord) Reshape(course Course) {
	type position struct{ module, section int }
	type titled struct{ module, section string }
	type indexed struct {
		module  int
		section string
	}

	byTitle := make(map[titled]position)
	byIndex := make(map[indexed]position)
	for m, module := range r.Modules {
		for s, section := range module.Sections {
			at := position{m, s}
			if _, seen := byTitle[titled{module.Title, section.SectionName}]; !seen {
				byTitle[titled{module.Title, section.SectionName}] = at
			}
			if _, seen := byIndex[indexed{m, section.SectionName}]; !seen {
				byIndex[indexed{m, section.SectionName}] = at
			}
		}
	}

	modules := shapeFromCourse(course)
	used := make(map[position]bool)
	carried := make(map[position]bool)
	carry := func(to, from position) {
		old := r.Modules[from.module].Sections[from.section]
		target := &modules[to.module].Sections[to.section]
		target.IsCompleted = old.IsCompleted
		target.CompletionTime = old.CompletionTime
		used[from] = true
		carried[to] = true
	}

	for m := range modules {
		for s := range modules[m].Sections {
			if from, ok := byTitle[titled{modules[m].Title, modules[m].Sections[s].SectionName}]; ok && !used[from] {
				carry(position{m, s}, from)
			}
		}
	}
	for m := range modules {
		for s := range modules[m].Sections {
			if carried[position{m, s}] {
				continue
			}
			if from, ok := byIndex[indexed{m, modules[m].Sections[s].SectionName}]; ok && !used[from] {
				carry(position{m, s}, from)
			}
		}
	}
	for m := range modules {
		for s := range modules[m].Sections {
			at := position{m, s}
			if carried[at] || !r.hasSection(m, s) || used[at] {
				continue
			}
			carry(at, at)
		}
	}

	r.CourseName = course.CourseName
	r.Modules = modules
}

// MatchesShape reports whether module titles, section counts and section names line up
// with the course.
func (r ProgressRecord) MatchesShape(course Course) bool {
	if len(r.Modules) != len(course.Modules) {
		return false
	}
	for i, module := range course.Modules {
		if r.Modules[i].Title != module.Title || len(r.Modules[i].Sections) != len(module.Sections) {
			return false
		}
		for j, section := range module.Sections {
			if r.Modules[i].Sections[j].SectionName != section.SectionName {
				return false
			}
		}
	}
	return true
}

func (r ProgressRecord) hasSection(moduleIndex, sectionIndex int) bool {
	if moduleIndex < 0 || moduleIndex >= len(r.Modules) {
		return false
	}
	return sectionIndex >= 0 && sectionIndex < len(r.Modules[moduleIndex].Sections)
}
