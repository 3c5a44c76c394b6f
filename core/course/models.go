package course

import (
	"net/url"
	"strconv"
	"strings"
)

type (
	Course struct {
		ID                int    `json:"id"`
		FullName          string `json:"fullname"`
		ShortName         string `json:"shortname"`
		Visible           bool   `json:"visible"`
		CompletionEnabled bool   `json:"enablecompletion"`
	}

	// Activity is a course module instance (quiz, assignment, page...).
	Activity struct {
		ID                int    `json:"id"`
		CourseID          int    `json:"course"`
		ModName           string `json:"modname"`
		Name              string `json:"name"`
		Visible           bool   `json:"visible"`
		CompletionTracked bool   `json:"completion"`
	}
)

// CourseURL returns the course landing page under baseURL.
func CourseURL(baseURL string, courseID int) string {
	return pageURL(baseURL, "/course/view.php", courseID)
}

// ActivityURL returns the activity view page under baseURL.
func ActivityURL(baseURL string, act Activity) string {
	return pageURL(baseURL, "/mod/"+url.PathEscape(act.ModName)+"/view.php", act.ID)
}

func pageURL(baseURL, path string, id int) string {
	q := make(url.Values)
	q.Set("id", strconv.Itoa(id))
	return strings.TrimRight(baseURL, "/") + path + "?" + q.Encode()
}
