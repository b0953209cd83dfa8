package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/sky-takeout/internal/cart"
	"github.com/MikeMC777/sky-takeout/internal/menu"
	"github.com/MikeMC777/sky-takeout/internal/order"
	"github.com/MikeMC777/sky-takeout/internal/shop"
)

var ErrBadRequest = errors.New("bad request")

// Order matters: not-found errors also carry the state conflict kind.
var statusByError = []struct {
	err  error
	code int
}{
	{order.ErrNotFound, http.StatusNotFound},
	{menu.ErrNotFound, http.StatusNotFound},
	{cart.ErrNotFound, http.StatusNotFound},
	{ErrBadRequest, http.StatusBadRequest},
	{order.ErrValidation, http.StatusBadRequest},
	{menu.ErrInvalidDish, http.StatusBadRequest},
	{shop.ErrInvalidStatus, http.StatusBadRequest},
	{order.ErrStateConflict, http.StatusConflict},
	{menu.ErrDishOnSale, http.StatusConflict},
	{cart.ErrDishUnavailable, http.StatusConflict},
	{order.ErrCollaborator, http.StatusBadGateway},
	{menu.ErrStaleCache, http.StatusBadGateway},
	{menu.ErrStore, http.StatusBadGateway},
	{cart.ErrStore, http.StatusBadGateway},
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return http.StatusInternalServerError
}

// Fail renders err as {"error": ...}. Internal errors are logged and hidden.
func Fail(c *gin.Context, err error) {
	code := StatusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v internal error: %v", rid, err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
