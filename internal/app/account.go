package app

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/BodaDayo/TODO-Mobile/internal/db"
	"github.com/BodaDayo/TODO-Mobile/internal/schema"
	"github.com/BodaDayo/TODO-Mobile/internal/session"
	"github.com/BodaDayo/TODO-Mobile/internal/worker"
)

// Messages reported through DoneMsg.
const (
	MsgAvatarQueued  = "Avatar saved and queued for upload."
	MsgAvatarOffline = "Avatar saved on this device. It will upload once you are online; check your internet connection."
	MsgLoggedOut     = "Logged out."
)

// SignIn imports the account's state. Failures carry the underlying message.
func (a *App) SignIn(ctx context.Context, account session.Account, done DoneMsg) (*session.Result, error) {
	res, err := a.session.SignIn(ctx, account)
	if err == nil {
		a.logger.Printf("Signed in %s (%s)", account.ID, res.Outcome)
	}
	return res, reportMsg(done, err, "")
}

// SignUp sets up a brand new account on this device.
func (a *App) SignUp(ctx context.Context, account session.Account, done DoneMsg) (*session.Result, error) {
	res, err := a.session.SignUp(ctx, account)
	return res, reportMsg(done, err, "")
}

// SetUpNewUser fills in the profile of a freshly signed-up account and
// uploads it.
func (a *App) SetUpNewUser(ctx context.Context, name, occupation string, done Done) error {
	return report(done, a.saveProfile(ctx, "set up user", func(u *schema.User) {
		u.Name = name
		u.Occupation = occupation
		if u.AvatarFilePath == "" {
			u.AvatarFilePath = schema.PickDefaultAvatar(rand.IntN)
		}
	}))
}

// UpdateUserDetails changes the profile name and occupation.
func (a *App) UpdateUserDetails(ctx context.Context, name, occupation string, done Done) error {
	return report(done, a.saveProfile(ctx, "update user details", func(u *schema.User) {
		u.Name = name
		u.Occupation = occupation
	}))
}

func (a *App) saveProfile(ctx context.Context, op string, fn func(*schema.User)) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return wrap(op, err)
	}
	fn(user)
	if err := a.store.PutUser(ctx, *user); err != nil {
		return wrap(op, err)
	}
	if err := a.jobs.Enqueue(worker.Key{UserID: user.ID, Kind: worker.KindUserDetails}, worker.UserDetailsInput(*user)); err != nil {
		a.logger.Printf("Warning: failed to schedule profile upload: %v", err)
	}
	return nil
}

// ChangeUserAvatar copies the image at srcPath into the avatars directory,
// points the profile at the copy and schedules the upload. The message says
// whether the upload is waiting for connectivity.
func (a *App) ChangeUserAvatar(ctx context.Context, srcPath string, done DoneMsg) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return reportMsg(done, wrap("change avatar", err), "")
	}

	dst, err := a.copyAvatar(user.ID, srcPath)
	if err != nil {
		return reportMsg(done, wrap("change avatar", err), "")
	}

	user.AvatarFilePath = dst
	if err := a.store.PutUser(ctx, *user); err != nil {
		return reportMsg(done, wrap("change avatar", err), "")
	}

	if err := a.jobs.Enqueue(worker.Key{UserID: user.ID, Kind: worker.KindAvatar}, worker.AvatarInput(user.ID, dst)); err != nil {
		return reportMsg(done, wrap("schedule avatar upload", err), "")
	}

	msg := MsgAvatarQueued
	if c := a.config.Connectivity; c != nil && !c.Online() {
		msg = MsgAvatarOffline
	}
	return reportMsg(done, nil, msg)
}

// copyAvatar writes srcPath to avatarsDir/{userID}{ext}, replacing any
// previous avatar of that user.
func (a *App) copyAvatar(userID, srcPath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(srcPath))
	if ext == "" {
		return "", fmt.Errorf("avatar %s has no file extension", srcPath)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(a.avatarsDir, 0755); err != nil {
		return "", err
	}

	dst := filepath.Join(a.avatarsDir, userID+ext)
	// Write to a dot file first so watchers never see a partial image
	tmp, err := os.CreateTemp(a.avatarsDir, "."+userID+"-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	matches, _ := filepath.Glob(filepath.Join(a.avatarsDir, userID+".*"))
	for _, m := range matches {
		if m != dst {
			os.Remove(m)
		}
	}
	return dst, nil
}

// LogOut cancels scheduled uploads and signs the device out. Uploads already
// running are allowed to finish.
func (a *App) LogOut(ctx context.Context, done DoneMsg) error {
	cancelled := a.jobs.CancelAll()
	if cancelled > 0 {
		a.logger.Printf("Cancelled %d scheduled uploads", cancelled)
	}
	return reportMsg(done, wrap("log out", a.session.SignOut(ctx)), MsgLoggedOut)
}

// Profile returns the signed-in user's cached profile.
func (a *App) Profile(ctx context.Context) (*schema.User, error) {
	return a.currentUser(ctx)
}

func (a *App) currentUser(ctx context.Context) (*schema.User, error) {
	id, err := a.activeUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := a.store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID != id {
		return nil, fmt.Errorf("signed-in user %s: %w", id, db.ErrNotFound)
	}
	return user, nil
}
