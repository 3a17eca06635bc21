package httpapi

import (
	"sync"

	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators добавляет правила в валидатор gin
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("claimed_status", claimedStatus)
	})
}

// claimedStatus: плательщик может заявить только терминальный исход
func claimedStatus(fl validator.FieldLevel) bool {
	return model.PaymentStatus(fl.Field().String()).IsTerminal()
}
