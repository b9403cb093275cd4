package api

import (
	"fmt"

	"checkout-service/internal/models"

	validatorv10 "github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(checkoutStructValidation, models.CheckoutRequest{})
	return v
}

// checkoutStructValidation enforces the mandatory checkout fields the nested
// binding tags cannot express: billing identity and well-formed line items.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(models.CheckoutRequest)

	if req.Billing.Email == "" {
		sl.ReportError(req.Billing.Email, "billing.email", "Email", "required", "")
	}
	if req.Billing.FirstName == "" {
		sl.ReportError(req.Billing.FirstName, "billing.first_name", "FirstName", "required", "")
	}
	if req.Billing.LastName == "" {
		sl.ReportError(req.Billing.LastName, "billing.last_name", "LastName", "required", "")
	}
	if len(req.LineItems) == 0 {
		sl.ReportError(req.LineItems, "line_items", "LineItems", "min", "1")
	}
	for i, item := range req.LineItems {
		if item.ProductID == 0 {
			sl.ReportError(item.ProductID, fmt.Sprintf("line_items[%d].product_id", i), "ProductID", "required", "")
		}
		if item.Quantity < 1 {
			sl.ReportError(item.Quantity, fmt.Sprintf("line_items[%d].quantity", i), "Quantity", "min", "1")
		}
	}
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.Namespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
