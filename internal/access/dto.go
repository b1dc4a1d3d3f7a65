package access

// PackagePermissionDTO is one row of a principal's permission listing.
type PackagePermissionDTO struct {
	Package     string   `json:"package"`
	Permissions []string `json:"permissions"`
}

// UserPermissionDTO is one user entry in a package's ACL listing.
type UserPermissionDTO struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

// GroupPermissionDTO is one group entry in a package's ACL listing.
type GroupPermissionDTO struct {
	Group       string   `json:"group"`
	Permissions []string `json:"permissions"`
}

// PackageACLDTO is the full ACL of a package as the admin API reports it.
type PackageACLDTO struct {
	Package string               `json:"package"`
	User    []UserPermissionDTO  `json:"user"`
	Group   []GroupPermissionDTO `json:"group"`
}

// GroupDetailDTO combines members and package grants for GET group/{group}.
type GroupDetailDTO struct {
	Members  []string               `json:"members"`
	Packages []PackagePermissionDTO `json:"packages"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// SetAdminDTO is the body of POST user/{username}/admin.
type SetAdminDTO struct {
	Admin *bool `json:"admin"`
}

func (d SetAdminDTO) Validate() error {
	if d.Admin == nil {
		return ValidationError{Msg: "admin is required"}
	}
	return nil
}

// AllowRegisterDTO is the body of POST register.
type AllowRegisterDTO struct {
	Allow *bool `json:"allow"`
}

func (d AllowRegisterDTO) Validate() error {
	if d.Allow == nil {
		return ValidationError{Msg: "allow is required"}
	}
	return nil
}
