package models

// Department groups subjects under a head of department. It is only used to
// scope what a department head sees, never to drive the lifecycle.
type Department struct {
	Name     string   `json:"name" yaml:"name"`
	Head     string   `json:"head" yaml:"head"`
	Subjects []string `json:"subjects" yaml:"subjects"`
}

// Covers reports whether subject belongs to the department.
func (d Department) Covers(subject string) bool {
	for _, s := range d.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}
