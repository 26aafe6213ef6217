package cachekv

const (
	NamespaceSearch   = "search:"
	NamespaceCrawlJob = "crawljob:"
	NamespaceStream   = "stream:"
)
