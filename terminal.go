package windgo

// Response 终端返回的列式数据
//
// ErrorCode 为 0 表示成功；Fields 为字段名列表，Data 与之平行，
// 每个字段对应一条取值序列；时序调用额外返回与数据平行的时间序列。
type Response struct {
	RequestID string          `json:"req_id"`
	ErrorCode int             `json:"error_code"`
	Fields    []string        `json:"fields"`
	Times     []string        `json:"times,omitempty"`
	Data      [][]interface{} `json:"data"`
}

// Terminal 终端会话接口，定义了适配器消费的全部远程调用
//
// 具体实现由 GatewayTerminal 提供；测试中可注入替身。
type Terminal interface {
	// Start 建立终端会话，已连接时应幂等返回
	Start() error

	// IsConnected 查询会话存活状态
	IsConnected() bool

	// Stop 关闭终端会话
	Stop() error

	// WSet 报表查询：按数据集名和选项串获取截面数据（如证券列表）
	WSet(report, options string) (*Response, error)

	// WSD 时间序列查询：按代码、字段列表和起止日期获取日序列
	WSD(codes, fields, beginTime, endTime, options string) (*Response, error)

	// WSS 截面快照查询：按代码、字段列表和选项串获取报告期数据
	WSS(codes, fields, options string) (*Response, error)
}
