package simlink

const (
	DefIDState uint32 = 1
	ReqIDState uint32 = 1
)
