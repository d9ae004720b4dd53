package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

var registerOnce sync.Once

// registerValidators adds the vote_direction and votable_type tags to gin's
// binding validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("vote_direction", func(fl validator.FieldLevel) bool {
			_, err := models.ParseVoteDirection(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("votable_type", func(fl validator.FieldLevel) bool {
			_, err := models.ParseVotableType(fl.Field().String())
			return err == nil
		})
	})
}
