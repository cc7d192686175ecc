// Package profile stores the subject data a plan is generated from: the
// profile, the intake assessment and periodic check-ins.
package profile

import "time"

// Profile is the subject's basic fitness profile.
type Profile struct {
	SubjectID       string    `json:"subjectId"`
	Name            string    `json:"name"`
	Age             int       `json:"age"`
	WeightKg        float64   `json:"weightKg"`
	HeightCm        float64   `json:"heightCm"`
	Goals           []string  `json:"goals"`
	ExperienceLevel string    `json:"experienceLevel"`
	Language        string    `json:"language,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Assessment is the intake questionnaire a subject completes once and may
// revise later.
type Assessment struct {
	FoodPreferences      []string `json:"foodPreferences"`
	Allergies            []string `json:"allergies"`
	DietaryRestrictions  []string `json:"dietaryRestrictions"`
	ScheduleAvailability string   `json:"scheduleAvailability"`
	MedicalConditions    []string `json:"medicalConditions"`
	Injuries             []string `json:"injuries"`
	ExerciseHistory      string   `json:"exerciseHistory"`
}

// CheckIn is a periodic progress report. Every measured field is optional;
// scores use a 1-10 scale.
type CheckIn struct {
	ID                 string    `json:"id"`
	SubjectID          string    `json:"subjectId"`
	WeightKg           *float64  `json:"weightKg,omitempty"`
	EnergyLevel        *int      `json:"energyLevel,omitempty"`
	SleepQuality       *int      `json:"sleepQuality,omitempty"`
	DietaryAdherence   *int      `json:"dietaryAdherence,omitempty"`
	WorkoutPerformance *int      `json:"workoutPerformance,omitempty"`
	NewInjuries        []string  `json:"newInjuries,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

// Subject bundles a profile with its assessment.
type Subject struct {
	Profile    Profile    `json:"profile"`
	Assessment Assessment `json:"assessment"`
}
