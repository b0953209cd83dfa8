package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/sky-takeout/internal/actor"
	"github.com/MikeMC777/sky-takeout/internal/cart"
	"github.com/MikeMC777/sky-takeout/internal/httpx"
	"github.com/MikeMC777/sky-takeout/internal/menu"
	"github.com/MikeMC777/sky-takeout/internal/order"
	"github.com/MikeMC777/sky-takeout/internal/shop"
)

type app struct {
	menu   *menu.Service
	shop   *shop.Service
	carts  *cart.Service
	orders *order.Service
	// users and employees resolve the customer and admin surfaces apart.
	users     actor.Resolver
	employees actor.Resolver
}

func routes(r *gin.Engine, a app) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	admin := r.Group("/admin", httpx.Actor(a.employees))
	admin.PUT("/shop/:status", setShopStatusHandler(a.shop))
	admin.GET("/shop/status", getShopStatusHandler(a.shop))

	admin.POST("/dish", createDishHandler(a.menu))
	admin.PUT("/dish", updateDishHandler(a.menu))
	admin.DELETE("/dish", deleteDishesHandler(a.menu))
	admin.POST("/dish/status/:status", setDishStatusHandler(a.menu))
	admin.GET("/dish/page", pageDishesHandler(a.menu))
	admin.GET("/dish/:id", getDishHandler(a.menu))

	admin.PUT("/order/confirm/:id", advanceOrderHandler(a.orders.Confirm))
	admin.PUT("/order/delivery/:id", advanceOrderHandler(a.orders.Deliver))
	admin.PUT("/order/complete/:id", advanceOrderHandler(a.orders.Complete))
	admin.GET("/order/statistics", statisticsHandler(a.orders))
	admin.GET("/report/turnover", turnoverHandler(a.orders))

	user := r.Group("/user", httpx.Actor(a.users))
	user.GET("/shop/status", getShopStatusHandler(a.shop))
	user.GET("/dish/list", listDishesHandler(a.menu))

	user.POST("/shoppingCart/add", addCartHandler(a.carts))
	user.POST("/shoppingCart/sub", subCartHandler(a.carts))
	user.GET("/shoppingCart/list", listCartHandler(a.carts))
	user.DELETE("/shoppingCart/clean", cleanCartHandler(a.carts))

	user.POST("/order/submit", submitOrderHandler(a.orders))
	user.PUT("/order/payment", payOrderHandler(a.orders))
	user.PUT("/order/cancel/:id", cancelOrderHandler(a.orders))
	user.POST("/order/repetition/:id", repeatOrderHandler(a.orders))
	user.GET("/order/orderDetail/:id", orderDetailHandler(a.orders))
	user.GET("/order/historyOrders", historyHandler(a.orders))
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(c, fmt.Errorf("%w: invalid %s", httpx.ErrBadRequest, name))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return n
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpx.Fail(c, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return false
	}
	return true
}

//
// ===== SHOP =====
//

func setShopStatusHandler(s *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("status"))
		if err != nil {
			httpx.Fail(c, shop.ErrInvalidStatus)
			return
		}
		if err := s.Set(c.Request.Context(), shop.Status(n)); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getShopStatusHandler(s *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.Get(c.Request.Context())
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": int(st), "label": st.String()})
	}
}

//
// ===== MENU =====
//

func listDishesHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		categoryID, err := strconv.ParseInt(c.Query("categoryId"), 10, 64)
		if err != nil || categoryID <= 0 {
			httpx.Fail(c, fmt.Errorf("%w: categoryId is required", httpx.ErrBadRequest))
			return
		}
		dishes, err := m.ListForCategory(c.Request.Context(), categoryID)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if dishes == nil {
			dishes = []menu.Dish{}
		}
		c.JSON(http.StatusOK, dishes)
	}
}

func getDishHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		d, err := m.Get(c.Request.Context(), id)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func pageDishesHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := menu.Query{
			Name:       c.Query("name"),
			CategoryID: int64(queryInt(c, "categoryId", 0)),
			Limit:      queryInt(c, "limit", 20),
			Offset:     queryInt(c, "offset", 0),
		}
		if v := c.Query("status"); v != "" {
			st, err := strconv.Atoi(v)
			if err != nil {
				httpx.Fail(c, fmt.Errorf("%w: status", httpx.ErrBadRequest))
				return
			}
			q.Status = &st
		}
		items, err := m.Page(c.Request.Context(), q)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if items == nil {
			items = []menu.Dish{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "limit": q.Limit, "offset": q.Offset})
	}
}

func createDishHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.DishRequest
		if !bind(c, &req) {
			return
		}
		d, err := m.Create(c.Request.Context(), httpx.ActorID(c), req)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

func updateDishHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req menu.DishRequest
		if !bind(c, &req) {
			return
		}
		if err := m.Update(c.Request.Context(), httpx.ActorID(c), req); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// deleteDishesHandler takes ?ids=1,2,3.
func deleteDishesHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []int64
		for _, part := range strings.Split(c.Query("ids"), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				httpx.Fail(c, fmt.Errorf("%w: ids", httpx.ErrBadRequest))
				return
			}
			ids = append(ids, id)
		}
		if err := m.Delete(c.Request.Context(), ids); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func setDishStatusHandler(m *menu.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := strconv.Atoi(c.Param("status"))
		if err != nil {
			httpx.Fail(c, fmt.Errorf("%w: status", httpx.ErrBadRequest))
			return
		}
		id, err := strconv.ParseInt(c.Query("id"), 10, 64)
		if err != nil {
			httpx.Fail(c, fmt.Errorf("%w: id", httpx.ErrBadRequest))
			return
		}
		if err := m.SetStatus(c.Request.Context(), httpx.ActorID(c), id, status); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

//
// ===== CART =====
//

func addCartHandler(s *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddRequest
		if !bind(c, &req) {
			return
		}
		l, err := s.Add(c.Request.Context(), httpx.ActorID(c), req)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

func subCartHandler(s *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddRequest
		if !bind(c, &req) {
			return
		}
		if err := s.Subtract(c.Request.Context(), httpx.ActorID(c), req); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listCartHandler(s *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lines, err := s.List(c.Request.Context(), httpx.ActorID(c))
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if lines == nil {
			lines = []cart.Line{}
		}
		c.JSON(http.StatusOK, lines)
	}
}

func cleanCartHandler(s *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Clean(c.Request.Context(), httpx.ActorID(c)); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

//
// ===== ORDERS =====
//

func submitOrderHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.SubmitRequest
		if !bind(c, &req) {
			return
		}
		res, err := s.Submit(c.Request.Context(), httpx.ActorID(c), req)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

func payOrderHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderNumber string `json:"order_number" binding:"required"`
		}
		if !bind(c, &req) {
			return
		}
		handle, err := s.RequestPayment(c.Request.Context(), httpx.ActorID(c), req.OrderNumber)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, handle)
	}
}

func cancelOrderHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Cancel(c.Request.Context(), httpx.ActorID(c), id); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func repeatOrderHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Repeat(c.Request.Context(), httpx.ActorID(c), id); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func orderDetailHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		d, err := s.Detail(c.Request.Context(), httpx.ActorID(c), id)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func historyHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := s.History(c.Request.Context(), httpx.ActorID(c), order.PageQuery{
			Page:     queryInt(c, "page", 1),
			PageSize: queryInt(c, "pageSize", 10),
			Status:   order.Status(queryInt(c, "status", 0)),
		})
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func advanceOrderHandler(step func(ctx context.Context, id int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := step(c.Request.Context(), id); err != nil {
			httpx.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func statisticsHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.Statistics(c.Request.Context())
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// turnoverHandler takes ?begin=2006-01-02&end=2006-01-02, both inclusive days.
func turnoverHandler(s *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		begin, err1 := time.ParseInLocation(time.DateOnly, c.Query("begin"), time.Local)
		end, err2 := time.ParseInLocation(time.DateOnly, c.Query("end"), time.Local)
		if err1 != nil || err2 != nil {
			httpx.Fail(c, fmt.Errorf("%w: begin and end must be YYYY-MM-DD", httpx.ErrBadRequest))
			return
		}
		sum, err := s.Turnover(c.Request.Context(), begin, end.AddDate(0, 0, 1))
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"begin": c.Query("begin"), "end": c.Query("end"), "turnover": sum})
	}
}
