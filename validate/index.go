package validate

import (
	"fmt"
	"strings"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Body parses the request body into T, validates it and stores it in Locals "input".
func Body[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T
		if err := c.BodyParser(&input); err != nil {
			return utils.AppErrorResponse(c, apperror.Validation(fmt.Sprintf("%s: %s", constants.INVALID_INPUT, err.Error())))
		}
		if err := validate.Struct(&input); err != nil {
			return utils.AppErrorResponse(c, apperror.Validation(err.Error()))
		}

		c.Locals(constants.LOCAL_INPUT, input)
		return c.Next()
	}
}

func CreateSession() fiber.Handler    { return Body[model.CreateSessionInput]() }
func CreateOrder() fiber.Handler      { return Body[model.CreateOrderRequest]() }
func TransitionStatus() fiber.Handler { return Body[model.TransitionStatusRequest]() }
func CreatePayment() fiber.Handler    { return Body[model.CreatePaymentInput]() }
func CreateRefund() fiber.Handler     { return Body[model.CreateRefundInput]() }
func UpdateTable() fiber.Handler      { return Body[model.UpdateTableStatusInput]() }

type listOrdersQuery struct {
	Limit  *int     `query:"limit"`
	Page   *int     `query:"page"`
	Status []string `query:"status"`
	From   string   `query:"from"`
	To     string   `query:"to"`
	Asc    bool     `query:"asc"`
}

// ListOrders turns the query string into a model.OrderFilter. Status accepts
// repeated or comma separated values; from/to are RFC 3339.
func ListOrders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q listOrdersQuery
		if err := c.QueryParser(&q); err != nil {
			return utils.AppErrorResponse(c, apperror.Validation(fmt.Sprintf("%s: %s", constants.INVALID_INPUT, err.Error())))
		}

		filter := model.OrderFilter{
			Pagination: model.Pagination{Limit: q.Limit, Page: q.Page},
			Ascending:  q.Asc,
		}
		for _, raw := range q.Status {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					filter.Statuses = append(filter.Statuses, model.OrderStatus(strings.ToUpper(s)))
				}
			}
		}
		var err error
		if filter.From, err = parseTime("from", q.From); err != nil {
			return utils.AppErrorResponse(c, err)
		}
		if filter.To, err = parseTime("to", q.To); err != nil {
			return utils.AppErrorResponse(c, err)
		}
		if err := validate.Struct(&filter); err != nil {
			return utils.AppErrorResponse(c, apperror.Validation(err.Error()))
		}

		c.Locals(constants.LOCAL_INPUT, filter)
		return c.Next()
	}
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
	}
	return &t, nil
}
