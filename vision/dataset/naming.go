package dataset

import (
	"path/filepath"
	"strconv"
	"strings"
)

// The handstand push-ups class is spelled two ways in UCF101. The frame-count
// listing and the class directory use handstandClass; label listings and the
// extracted video directories use handStandClass.
const (
	handstandClass = "HandstandPushups"
	handStandClass = "HandStandPushups"
)

// ClassName returns the class part of a video identifier such as
// "ApplyEyeMakeup_g01_c01"
func ClassName(video string) string {
	class, _, _ := strings.Cut(video, "_")
	return class
}

// NormalizeClassKey maps a video identifier to its canonical spelling. Only the
// handstand push-ups class is rewritten; every other key is returned unchanged.
func NormalizeClassKey(key string) string {
	class, rest, found := strings.Cut(key, "_")
	if !found || class != handStandClass {
		return key
	}
	return handstandClass + "_" + rest
}

// frameVideoName returns the spelling used for the extracted frame directory and
// file names of video
func frameVideoName(video string) string {
	class, rest, found := strings.Cut(video, "_")
	if !found || class != handstandClass {
		return video
	}
	return handStandClass + "_" + rest
}

// FramePath builds root/<Class>/separated_images/v_<video>/v_<video>_<frame>.jpg
// for a video identifier in either spelling
func FramePath(root, video string, frame int) string {
	video = NormalizeClassKey(video)
	name := "v_" + frameVideoName(video)
	return filepath.Join(root, ClassName(video), "separated_images", name, name+"_"+strconv.Itoa(frame)+".jpg")
}

// FrameCountKey turns a frame-count listing key such as
// "v_ApplyEyeMakeup_g01_c01.avi" into the canonical video identifier
func FrameCountKey(raw string) string {
	_, rest, found := strings.Cut(raw, "_")
	if !found {
		rest = raw
	}
	rest, _, _ = strings.Cut(rest, ".")
	return NormalizeClassKey(rest)
}
