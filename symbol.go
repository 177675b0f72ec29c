package windgo

import "strings"

// NormalizeSymbol 将股票代码标准化为 Wind 格式
//
// 接受裸数字代码（"000001"）、带小写市场前缀的代码（"sz.000001"）
// 以及已带交易所后缀的代码（"000001.SZ"），统一输出带后缀的 Wind 代码。
// 该映射是全函数：任何输入都有确定输出，不会失败。
func NormalizeSymbol(symbol string) string {
	// 移除可能的前缀
	symbol = strings.TrimPrefix(symbol, "sh.")
	symbol = strings.TrimPrefix(symbol, "sz.")

	// 如果已经是 Wind 格式（包含 .），直接返回
	if strings.Contains(symbol, ".") {
		return symbol
	}

	// 根据代码判断交易所（Wind 格式）
	switch {
	case strings.HasPrefix(symbol, "6"):
		return symbol + ".SH" // 上海证券交易所
	case strings.HasPrefix(symbol, "0"), strings.HasPrefix(symbol, "3"):
		return symbol + ".SZ" // 深圳证券交易所
	case strings.HasPrefix(symbol, "8"):
		return symbol + ".BJ" // 北京证券交易所
	default:
		// 默认深圳
		return symbol + ".SZ"
	}
}

// BareSymbol 去掉交易所后缀，返回裸代码
func BareSymbol(symbol string) string {
	if i := strings.Index(symbol, "."); i >= 0 {
		return symbol[:i]
	}
	return symbol
}
