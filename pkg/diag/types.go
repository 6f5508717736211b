package diag

import "fmt"

// RequestType is the opcode a host puts in a request header.
type RequestType uint32

// ResponseType is the opcode diagd puts in a response header. Response opcodes
// never overlap request opcodes, so both travel in the same header field.
type ResponseType uint32

const (
	ReqGetMonLog            = RequestType(0x0001)
	ReqGetDiagResultLog     = RequestType(0x0002)
	ReqRunTests             = RequestType(0x0003)
	ReqMocaGetConnInfo      = RequestType(0x0101)
	ReqMocaGetMocaLog       = RequestType(0x0102)
	ReqMocaGetMocaInitParms = RequestType(0x0103)
	ReqMocaGetStatus        = RequestType(0x0104)
	ReqMocaGetConfig        = RequestType(0x0105)
	ReqMocaGetNodeStatusTbl = RequestType(0x0106)
	ReqMocaGetNodeStatsTbl  = RequestType(0x0107)

	responseFlag = 0x8000
)

const (
	RspGetMonLog            = ResponseType(responseFlag | ReqGetMonLog)
	RspGetDiagResultLog     = ResponseType(responseFlag | ReqGetDiagResultLog)
	RspRunTests             = ResponseType(responseFlag | ReqRunTests)
	RspMocaGetConnInfo      = ResponseType(responseFlag | ReqMocaGetConnInfo)
	RspMocaGetMocaLog       = ResponseType(responseFlag | ReqMocaGetMocaLog)
	RspMocaGetMocaInitParms = ResponseType(responseFlag | ReqMocaGetMocaInitParms)
	RspMocaGetStatus        = ResponseType(responseFlag | ReqMocaGetStatus)
	RspMocaGetConfig        = ResponseType(responseFlag | ReqMocaGetConfig)
	// RspMocaGetNodeStatusTbl answers both node table requests.
	RspMocaGetNodeStatusTbl = ResponseType(responseFlag | ReqMocaGetNodeStatusTbl)
)

var requestNames = map[RequestType]string{
	ReqGetMonLog:            "GET_MON_LOG",
	ReqGetDiagResultLog:     "GET_DIAG_RESULT_LOG",
	ReqRunTests:             "RUN_TESTS",
	ReqMocaGetConnInfo:      "MOCA_GET_CONN_INFO",
	ReqMocaGetMocaLog:       "MOCA_GET_MOCA_LOG",
	ReqMocaGetMocaInitParms: "MOCA_GET_MOCA_INITPARMS",
	ReqMocaGetStatus:        "MOCA_GET_STATUS",
	ReqMocaGetConfig:        "MOCA_GET_CONFIG",
	ReqMocaGetNodeStatusTbl: "MOCA_GET_NODE_STATUS_TBL",
	ReqMocaGetNodeStatsTbl:  "MOCA_GET_NODE_STATS_TBL",
}

var responseNames = map[ResponseType]string{
	RspGetMonLog:            "RSP_GET_MON_LOG",
	RspGetDiagResultLog:     "RSP_GET_DIAG_RESULT_LOG",
	RspRunTests:             "RSP_RUN_TESTS",
	RspMocaGetConnInfo:      "RSP_MOCA_GET_CONN_INFO",
	RspMocaGetMocaLog:       "RSP_MOCA_GET_MOCA_LOG",
	RspMocaGetMocaInitParms: "RSP_MOCA_GET_MOCA_INITPARMS",
	RspMocaGetStatus:        "RSP_MOCA_GET_STATUS",
	RspMocaGetConfig:        "RSP_MOCA_GET_CONFIG",
	RspMocaGetNodeStatusTbl: "RSQ_MOCA_GET_NODE_STATUS_TBL",
}

func (t RequestType) String() string {
	if name, ok := requestNames[t]; ok {
		return name
	}
	return fmt.Sprintf("REQ_0x%04x", uint32(t))
}

func (t ResponseType) String() string {
	if name, ok := responseNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RSP_0x%04x", uint32(t))
}

// ExpectedResponse returns the response opcode t is answered with.
func (t RequestType) ExpectedResponse() (ResponseType, bool) {
	if _, ok := requestNames[t]; !ok {
		return 0, false
	}
	if t == ReqMocaGetNodeStatsTbl {
		return RspMocaGetNodeStatusTbl, true
	}
	return ResponseType(responseFlag | t), true
}
