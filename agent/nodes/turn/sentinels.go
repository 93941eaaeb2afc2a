package turnnode

import (
	"fmt"
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
)

var customerIDQuestions = []string{
	"customer id",
	"customer number",
	"account id",
	"who am i",
}

var purchasePhrases = []string{
	"i'll take",
	"i will take",
	"i want to buy",
	"i'd like to buy",
	"add to cart",
	"place an order for",
	"purchase",
}

// CheckSentinels answers the handful of questions that never need
// classification: the customer asking for their own id, and a purchase
// request against the product the conversation is already focused on.
func CheckSentinels(st *GraphState, customer contractx.CustomerContext) *GraphState {
	lowered := strings.ToLower(st.Utterance)

	for _, q := range customerIDQuestions {
		if strings.Contains(lowered, q) {
			st.Reply = fmt.Sprintf("Your customer ID is %s.", customer.ID)
			st.Canned = true
			return st
		}
	}

	if st.Focus != nil && st.Focus.ProductName != "" {
		for _, p := range purchasePhrases {
			if strings.Contains(lowered, p) {
				st.Reply = fmt.Sprintf(
					"Great choice! I can't take payments here, but you can order the %s through our website checkout. Anything else I can help with?",
					st.Focus.ProductName)
				st.Canned = true
				return st
			}
		}
	}

	return st
}
