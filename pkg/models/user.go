package models

// UserProfile is a synthetic audience profile loaded from the static user
// roster at startup. Profiles are immutable for the process lifetime and
// looked up by their unique integer ID.
type UserProfile struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Location   string   `json:"location"`
	Language   string   `json:"language"`
	Occupation string   `json:"occupation"`
	Interests  []string `json:"interests"`
	Hobbies    []string `json:"hobbies"`
}

// AllInterests returns the user's stated interests and hobbies as one list,
// which is the input surface for trend matching.
func (u *UserProfile) AllInterests() []string {
	out := make([]string, 0, len(u.Interests)+len(u.Hobbies))
	out = append(out, u.Interests...)
	out = append(out, u.Hobbies...)
	return out
}
