package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/negosyoko/nena/internal/loans"
	"github.com/negosyoko/nena/internal/records"
)

// Assistant produces a reply to a borrower's chat message.
type Assistant interface {
	Reply(ctx context.Context, userID, message string) (string, error)
}

// LoanLister reads a borrower's loan applications.
type LoanLister interface {
	List(ctx context.Context, userID string) ([]loans.Application, error)
}

// IncomeAnalyzer summarises a borrower's income records.
type IncomeAnalyzer interface {
	Analytics(ctx context.Context, userID string) (records.Analytics, error)
}

type topic int

const (
	topicUnknown topic = iota
	topicGreeting
	topicLoan
	topicIncome
	topicDocuments
	topicHelp
)

var keywords = []struct {
	topic topic
	words []string
}{
	{topicLoan, []string{"loan", "utang", "apply", "application", "pautang"}},
	{topicIncome, []string{"income", "kita", "sales", "earn", "benta", "revenue"}},
	{topicDocuments, []string{"document", "permit", "upload", "id", "dokumento"}},
	{topicHelp, []string{"help", "tulong", "what can"}},
	{topicGreeting, []string{"hello", "hi", "kumusta", "good morning", "good afternoon"}},
}

func classify(message string) topic {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	joined := " " + strings.Join(words, " ") + " "
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(joined, " "+w+" ") {
				return k.topic
			}
		}
	}
	return topicUnknown
}

// RuleAssistant answers from the borrower's own loans and income records.
type RuleAssistant struct {
	loans  LoanLister
	income IncomeAnalyzer
}

func NewRuleAssistant(loans LoanLister, income IncomeAnalyzer) *RuleAssistant {
	return &RuleAssistant{loans: loans, income: income}
}

func (a *RuleAssistant) Reply(ctx context.Context, userID, message string) (string, error) {
	switch classify(message) {
	case topicLoan:
		return a.loanReply(ctx, userID)
	case topicIncome:
		return a.incomeReply(ctx, userID)
	case topicDocuments:
		return "You can upload a business permit or valid ID from the Documents screen. Clear photos in JPEG or PNG work best.", nil
	case topicGreeting:
		return "Hi! I can tell you about your loan applications and your income records. What would you like to know?", nil
	case topicHelp:
		return "Ask me about your loan applications, your recorded income, or which documents to upload.", nil
	default:
		return "Sorry, I didn't catch that. Try asking about your loans, your income, or your documents.", nil
	}
}

func (a *RuleAssistant) loanReply(ctx context.Context, userID string) (string, error) {
	apps, err := a.loans.List(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list loans: %w", err)
	}
	if len(apps) == 0 {
		return "You have no loan applications yet. You can apply for PHP 1,000 up to PHP 500,000 with a term of 1 to 60 months.", nil
	}
	latest := apps[0]
	return fmt.Sprintf("You have %d loan application(s). Your latest is for PHP %s over %d months and is %s.",
		len(apps), loans.FormatPesos(latest.Amount), latest.TermMonths, strings.ToLower(latest.Status)), nil
}

func (a *RuleAssistant) incomeReply(ctx context.Context, userID string) (string, error) {
	stats, err := a.income.Analytics(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("income analytics: %w", err)
	}
	if stats.RecordCount == 0 {
		return "You haven't recorded any income yet. Adding your sales regularly helps your loan application.", nil
	}
	reply := fmt.Sprintf("You've recorded PHP %s across %d entries, about PHP %s each.",
		loans.FormatPesos(stats.TotalIncome), stats.RecordCount, loans.FormatPesos(stats.AverageAmount))
	if len(stats.TopSources) > 0 {
		reply += fmt.Sprintf(" Your biggest source is %s.", stats.TopSources[0].Source)
	}
	return reply, nil
}
