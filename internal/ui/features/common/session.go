package common

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie holding dashboard preferences.
const SessionName = "leaplineage"

const projectValue = "project"

// SelectedProject returns the project filter stored in the session, or "".
func SelectedProject(store sessions.Store, r *http.Request) string {
	if store == nil {
		return ""
	}
	session, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	project, _ := session.Values[projectValue].(string)
	return project
}

// SaveSelectedProject stores the project filter. An empty project clears it.
func SaveSelectedProject(store sessions.Store, w http.ResponseWriter, r *http.Request, project string) error {
	// a stale or foreign cookie yields a fresh session alongside the error
	session, _ := store.Get(r, SessionName)
	if project == "" {
		delete(session.Values, projectValue)
	} else {
		session.Values[projectValue] = project
	}
	return session.Save(r, w)
}
