// Package validation checks user-entered text before it is sent anywhere.
// Lengths are counted in code points after trimming surrounding space.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/zfogg/feedsync/pkg/errors"
)

const (
	MaxPostText    = 1200
	MaxCommentText = 500
	MaxMessageText = 2000
	MaxProfileName = 80
	MaxProfileBio  = 200
)

type postCreate struct {
	ImageURL string `json:"imageUrl" validate:"required"`
	Text     string `json:"text" validate:"max=1200"`
}

type postEdit struct {
	Text string `json:"text" validate:"required,max=1200"`
}

type commentText struct {
	Text string `json:"text" validate:"required,max=500"`
}

type messageText struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type profileUpdate struct {
	Name string `json:"name" validate:"max=80"`
	Bio  string `json:"bio" validate:"max=200"`
}

var (
	once     sync.Once
	validate *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f.Tag.Get("json"), f.Name)
		})
	})
	return validate
}

func jsonName(tag, fallback string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "" || name == "-" {
		return strings.ToLower(fallback)
	}
	return name
}

func check(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.New(errors.KindValidation, err.Error(), err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return errors.Validation(fe.Field(), "must not be empty")
	case "max":
		return errors.Validation(fe.Field(), fmt.Sprintf("must be at most %s characters", fe.Param()))
	default:
		return errors.Validation(fe.Field(), fe.Tag())
	}
}

// PostCreate validates a new post and returns the trimmed values
func PostCreate(imageURL, text string) (string, string, error) {
	in := postCreate{ImageURL: strings.TrimSpace(imageURL), Text: strings.TrimSpace(text)}
	if err := check(in); err != nil {
		return "", "", err
	}
	return in.ImageURL, in.Text, nil
}

// PostEdit validates edited post text
func PostEdit(text string) (string, error) {
	in := postEdit{Text: strings.TrimSpace(text)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.Text, nil
}

// Comment validates comment text for create and update
func Comment(text string) (string, error) {
	in := commentText{Text: strings.TrimSpace(text)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.Text, nil
}

// Message validates direct message text
func Message(text string) (string, error) {
	in := messageText{Text: strings.TrimSpace(text)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.Text, nil
}

// Profile validates the editable profile fields
func Profile(name, bio string) (string, string, error) {
	in := profileUpdate{Name: strings.TrimSpace(name), Bio: strings.TrimSpace(bio)}
	if err := check(in); err != nil {
		return "", "", err
	}
	return in.Name, in.Bio, nil
}
