package template

import "strings"

// aliasGroups lists naming variants that refer to the same logical field,
// so callers can populate scopes in either snake_case or camelCase (or
// with the handful of historic field names the admin surface uses).
var aliasGroups = [][]string{
	{"user_name", "userName", "first_name", "firstName", "full_name", "fullName", "name"},
	{"user_email", "userEmail", "recipient_email", "recipientEmail", "email"},
	{"prize_amount", "prizeAmount", "reward_amount", "rewardAmount", "amount"},
	{"unsubscribe_url", "unsubscribeUrl", "unsubscribe_link", "unsubscribeLink"},
	{"redeem_url", "redeemUrl", "gift_card_url", "giftCardUrl"},
	{"gift_card_code", "giftCardCode", "card_code", "cardCode"},
	{"contest_name", "contestName"},
	{"contest_title", "contestTitle"},
	{"submission_count", "submissionCount"},
	{"vote_count", "voteCount"},
	{"subscription_tier", "subscriptionTier", "tier"},
	{"drawing_month", "drawingMonth", "month"},
	{"drawing_year", "drawingYear", "year"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string][]string {
	idx := make(map[string][]string, len(aliasGroups)*4)
	for _, group := range aliasGroups {
		for _, name := range group {
			idx[name] = group
		}
	}
	return idx
}

// candidatesFor returns the keys to try, in order, when resolving key
// against a scope: the key itself, its alias group, then the mechanical
// snake_case/camelCase conversions of the key.
func candidatesFor(key string) []string {
	candidates := []string{key}
	if group, ok := aliasIndex[key]; ok {
		for _, name := range group {
			if name != key {
				candidates = append(candidates, name)
			}
		}
	}
	if snake := toSnakeCase(key); snake != key {
		candidates = append(candidates, snake)
	}
	if camel := toCamelCase(key); camel != key {
		candidates = append(candidates, camel)
	}
	return candidates
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
