package authoring

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

// CourseCodePrefix prefixes every generated course code.
const CourseCodePrefix = "CRS-"

// CodeGenerator produces candidate course codes.
type CodeGenerator func() string

// RandomCourseCode returns CRS- followed by a random four digit number.
func RandomCourseCode() string {
	return fmt.Sprintf("%s%04d", CourseCodePrefix, 1000+rand.IntN(9000))
}

var youtubeIDPattern = regexp.MustCompile(`^.*(?:youtu\.be/|v/|u/\w/|embed/|shorts/|watch\?v=|&v=)([^#&?/]{11}).*$`)

// YouTubeID extracts the 11 character video id from a YouTube URL, or "" when
// the reference is not a recognisable YouTube link.
func YouTubeID(url string) string {
	match := youtubeIDPattern.FindStringSubmatch(url)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
