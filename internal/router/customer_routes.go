package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/huertohogar/internal/handler"
)

// RegisterCustomer registers the endpoints of the logged-in user under /v1.
// Every route requires a token whose subject is the session user.
func RegisterCustomer(e *echo.Echo, jwt echo.MiddlewareFunc, p *handler.ProfileHandler, c *handler.CartHandler, co *handler.CheckoutHandler) {
	g := e.Group("/v1", jwt)

	g.GET("/me", p.Get)
	g.PUT("/me", p.Update)

	g.GET("/cart", c.Get)
	g.GET("/cart/stream", c.Stream)
	g.POST("/cart/items/:productId", c.Add)
	g.PATCH("/cart/items/:productId", c.Update)
	g.DELETE("/cart/items/:productId", c.Remove)

	g.GET("/checkout", co.Get)
	g.POST("/checkout/confirm", co.Confirm)
}
