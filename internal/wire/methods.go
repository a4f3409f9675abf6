package wire

const ServiceName = "readkeeper.v1.Annotations"

const (
	MethodPing                  = "/" + ServiceName + "/Ping"
	MethodSaveDocument          = "/" + ServiceName + "/SaveDocument"
	MethodFetchDocument         = "/" + ServiceName + "/FetchDocument"
	MethodCreateHighlight       = "/" + ServiceName + "/CreateHighlight"
	MethodMergeHighlights       = "/" + ServiceName + "/MergeHighlights"
	MethodUpdateHighlight       = "/" + ServiceName + "/UpdateHighlight"
	MethodDeleteHighlights      = "/" + ServiceName + "/DeleteHighlights"
	MethodUpdateReadingProgress = "/" + ServiceName + "/UpdateReadingProgress"
	MethodContentURL            = "/" + ServiceName + "/ContentURL"
)
