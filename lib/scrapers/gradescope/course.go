package gradescope

import "fmt"

// Course is a course offering listed on the Gradescope dashboard.
type Course struct {
	CourseId     string `json:"course_id"`
	CourseNumber string `json:"course_number,omitempty"`
	// CourseName is the full name, e.g.
	// "MATH-UA 122.006 Calculus II, Spring 2026".
	CourseName  string   `json:"course_name,omitempty"`
	Instructors []string `json:"instructors,omitempty"`
	// Lms fields are set when the course is linked to an LMS course.
	LmsCourseId   string `json:"lms_course_id,omitempty"`
	LmsCourseName string `json:"lms_course_name,omitempty"`
}

func (c Course) Url() string {
	return fmt.Sprintf("%s/courses/%s", DefaultBaseUrl, c.CourseId)
}

func (c Course) String() string {
	name := c.CourseName
	if name == "" {
		name = c.CourseNumber
	}
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("Course(id=%s, name=%s)", c.CourseId, name)
}
