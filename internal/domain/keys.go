package domain

type CtxKey string

const (
	KeyUserID    CtxKey = "UserID"
	KeyUserEmail CtxKey = "Email"
	KeyUserRole  CtxKey = "Role"
	KeyUserName  CtxKey = "UserName"
	KeyCompanyID CtxKey = "CompanyID"
	KeyRequestID CtxKey = "RequestID"
)
