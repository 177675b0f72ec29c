package windgo

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 三张报表各自的终端字段列表
const (
	balanceSheetFields    = "trade_code,wicsname2024,tot_assets,tot_liab,wgsd_stkhldrs_eq"
	incomeStatementFields = "trade_code,wicsname2024,tot_oper_rev,tot_oper_cost,opprofit,tot_profit,net_profit_is"
	cashFlowFields        = "trade_code,wicsname2024,net_profit_cs,fin_exp_cs,cash_recp_sg_and_rs,cash_pay_goods_purch_serv_rec"
)

// Financials 一个报告期的财务快照
//
// 三张报表相互独立：某一张为空序列只表示该报表数据不可用，
// 不影响其余两张。
type Financials struct {
	BalanceSheet    []Record `json:"balance_sheet"`
	IncomeStatement []Record `json:"income_statement"`
	CashFlow        []Record `json:"cash_flow"`
}

func emptyFinancials() Financials {
	return Financials{
		BalanceSheet:    []Record{},
		IncomeStatement: []Record{},
		CashFlow:        []Record{},
	}
}

// FinancialData 获取指定报告期的财务数据
//
// period 为报告期年末日期（YYYYMMDD），缺省取最近年报。三张报表
// 各自独立抓取，任何一张失败都不阻断其余两张。
func (p *Provider) FinancialData(symbol, period string) Financials {
	p.mu.Lock()
	defer p.mu.Unlock()

	fin := emptyFinancials()

	if !p.ensureConnected() {
		p.logger.Error("terminal unavailable, cannot fetch financials",
			zap.String("symbol", symbol))
		return fin
	}

	windCode := NormalizeSymbol(symbol)
	if period == "" {
		period = lastAnnualPeriod(time.Now())
	}

	options := fmt.Sprintf("tradeDate=%s;industryType=2;unit=1;rptDate=%s;rptType=1;ShowBlank=0",
		time.Now().Format("20060102"), period)

	fin.BalanceSheet = p.fetchStatement("balance_sheet", windCode, balanceSheetFields, options)
	fin.IncomeStatement = p.fetchStatement("income_statement", windCode, incomeStatementFields, options)
	fin.CashFlow = p.fetchStatement("cash_flow", windCode, cashFlowFields, options)

	return fin
}

// fetchStatement 抓取单张报表，失败时返回空序列
func (p *Provider) fetchStatement(name, windCode, fields, options string) []Record {
	resp, err := p.terminal.WSS(windCode, fields, options)
	if err != nil {
		p.logger.Error("statement request failed",
			zap.String("statement", name),
			zap.String("wind_code", windCode),
			zap.Error(err))
		return []Record{}
	}
	if resp.ErrorCode != 0 {
		p.logger.Error("statement request rejected",
			zap.String("statement", name),
			zap.String("wind_code", windCode),
			zap.Int("error_code", resp.ErrorCode))
		return []Record{}
	}

	t := tableFromResponse(resp, "")
	p.logger.Debug("statement fetched",
		zap.String("statement", name),
		zap.String("wind_code", windCode),
		zap.Int("rows", t.Len()))
	return t.Records()
}

// lastAnnualPeriod 最近一个已披露年报的报告期
func lastAnnualPeriod(now time.Time) string {
	return fmt.Sprintf("%d1231", now.Year()-1)
}
