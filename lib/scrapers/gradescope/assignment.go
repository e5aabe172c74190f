package gradescope

import (
	"fmt"
	"time"
)

// Assignment is an assignment within a Gradescope course. Creating and
// editing assignments happens through the web UI; this type carries the
// metadata scoresheets and exports reference.
type Assignment struct {
	AssignmentId string `json:"assignment_id"`
	Name         string `json:"name"`
	CourseId     string `json:"course_id"`
	// TemplatePdf is the local path of the template, when one exists.
	TemplatePdf string     `json:"template_pdf,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	TotalPoints float64    `json:"total_points,omitempty"`
}

func (a Assignment) Url() string {
	return fmt.Sprintf("%s/courses/%s/assignments/%s", DefaultBaseUrl, a.CourseId, a.AssignmentId)
}

func (a Assignment) String() string {
	return fmt.Sprintf("Assignment(id=%s, name=%s)", a.AssignmentId, a.Name)
}
