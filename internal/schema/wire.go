package schema

import "path"

// UserDetails is the wire shape stored at users/{uid}/userDetails.
type UserDetails struct {
	Name           string `json:"name" firestore:"name"`
	Occupation     string `json:"occupation" firestore:"occupation"`
	AvatarFilePath string `json:"avatarFilePath" firestore:"avatarFilePath"`
}

// Remote store layout.
const (
	UsersRoot   = "users"
	AvatarsRoot = "avatars"
)

// TasksPath returns users/{uid}/tasks.
func TasksPath(userID string) string {
	return path.Join(UsersRoot, userID, "tasks")
}

// TaskPath returns users/{uid}/tasks/{taskId}.
func TaskPath(userID, taskID string) string {
	return path.Join(TasksPath(userID), taskID)
}

// UserDetailsPath returns users/{uid}/userDetails.
func UserDetailsPath(userID string) string {
	return path.Join(UsersRoot, userID, "userDetails")
}

// CategoriesPath returns users/{uid}/categories.
func CategoriesPath(userID string) string {
	return path.Join(UsersRoot, userID, "categories")
}

// AvatarPath returns avatars/{uid}.
func AvatarPath(userID string) string {
	return path.Join(AvatarsRoot, userID)
}

// Background job input keys. Every job carries a flat string map.
const (
	InputUserID         = "userId"
	InputNewDataJSON    = "newDataJson"
	InputName           = "name"
	InputOccupation     = "occupation"
	InputAvatarFilePath = "avatarFilePath"
)
