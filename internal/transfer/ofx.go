package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)

// ParseOFX extracts debits from the bank and credit-card statements in an
// OFX or QFX file. Amounts are made positive. Categories are left empty so
// the caller's suggester can fill them in.
func ParseOFX(r io.Reader) ([]core.Expense, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read OFX file: %w", err)
	}
	text := strings.TrimLeft(string(content), " \t\r\n")
	text = severityPattern.ReplaceAllStringFunc(text, strings.ToUpper)

	resp, err := ofxgo.ParseResponse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse OFX file: %w", err)
	}

	var out []core.Expense
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			out = append(out, debits(stmt.BankTranList.Transactions)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			out = append(out, debits(stmt.BankTranList.Transactions)...)
		}
	}
	return out, nil
}

func debits(txs []ofxgo.Transaction) []core.Expense {
	out := make([]core.Expense, 0, len(txs))
	for _, tx := range txs {
		if tx.TrnAmt.Sign() >= 0 {
			continue
		}
		amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(4))
		if err != nil {
			slog.Warn("Skipping OFX transaction with unreadable amount", "fitid", string(tx.FiTID), "error", err)
			continue
		}
		out = append(out, core.Expense{
			Date:        core.DateOf(tx.DtPosted.Time),
			Amount:      core.NewMoney(amount.Abs()),
			Description: payee(tx),
		})
	}
	return out
}

func payee(tx ofxgo.Transaction) string {
	name := ""
	if tx.Payee != nil {
		name = string(tx.Payee.Name)
	}
	if name == "" {
		name = string(tx.Name)
	}
	if name == "" {
		name = string(tx.Memo)
	}
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// ImportOFX creates an expense per debit.
func ImportOFX(ctx context.Context, r io.Reader, dst Creator) (Report, error) {
	expenses, err := ParseOFX(r)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	for _, e := range expenses {
		if err := create(ctx, dst, e, &rep); err != nil {
			if isFatal(err) {
				return rep, fmt.Errorf("import %s %q: %w", e.Date, e.Description, err)
			}
			rep.Rejected = append(rep.Rejected, fmt.Sprintf("%s %q: %v", e.Date, e.Description, err))
		}
	}
	return rep, nil
}
