package domain

// Catalog records are read-only reference data owned by other systems.

// Site is a campus or location that hosts evaluations.
type Site struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Cycle is an academic period. EnrollmentOpen and EnrollmentClose use DateLayout.
type Cycle struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Active          bool   `json:"active"`
	EnrollmentOpen  string `json:"enrollment_open"`
	EnrollmentClose string `json:"enrollment_close"`
}

// Section is a class group.
type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Career is a program of study.
type Career struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
