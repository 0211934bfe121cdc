package payslip

type LineItemResponse struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

type EarningsResponse struct {
	BaseSalary string             `json:"base_salary"`
	Allowances []LineItemResponse `json:"allowances"`
	Bonuses    []LineItemResponse `json:"bonuses"`
	Benefits   []LineItemResponse `json:"benefits"`
	Refunds    []LineItemResponse `json:"refunds"`
}

type DeductionsResponse struct {
	Taxes      []LineItemResponse `json:"taxes"`
	Insurances []LineItemResponse `json:"insurances"`
	Penalties  []LineItemResponse `json:"penalties"`
}

type PayslipResponse struct {
	ID              string             `json:"id"`
	PayslipNumber   string             `json:"payslip_number"`
	RunID           string             `json:"run_id"`
	EmployeeID      string             `json:"employee_id"`
	PayrollPeriod   string             `json:"payroll_period"`
	Entity          string             `json:"entity"`
	Earnings        EarningsResponse   `json:"earnings"`
	Deductions      DeductionsResponse `json:"deductions"`
	TotalGross      string             `json:"total_gross"`
	TotalDeductions string             `json:"total_deductions"`
	NetPay          string             `json:"net_pay"`
	Status          string             `json:"status"`
	DistributedAt   *string            `json:"distributed_at,omitempty"`
	PaidAt          *string            `json:"paid_at,omitempty"`
}
