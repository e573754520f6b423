package domain

import "fmt"

// View is the active screen of the client.
type View string

const (
	ViewOnboarding View = "onboarding"
	ViewCapture    View = "capture"
	ViewHome       View = "home"
	ViewRoutine    View = "routine"
	ViewProgress   View = "progress"
	ViewChat       View = "chat"
	ViewLibrary    View = "library"
	ViewProfile    View = "profile"
)

// Views lists every view; ViewOnboarding is the initial one.
var Views = []View{
	ViewOnboarding, ViewCapture, ViewHome, ViewRoutine,
	ViewProgress, ViewChat, ViewLibrary, ViewProfile,
}

// ParseView validates a raw view name.
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", &ErrValidation{Field: "view", Message: fmt.Sprintf("unknown view %q", s)}
}
