package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "btcforecast/internal/errors"
)

// Defaults applied to optional environment settings
const (
	DefaultContainerPort = 8888
	DefaultDockerfile    = "Dockerfile"
	DefaultBuildContext  = "."
	DefaultReadyTimeout  = 60 * time.Second
)

// Volume mounts a host directory into the container
type Volume struct {
	HostPath      string `yaml:"host" validate:"required,hostpath"`
	ContainerPath string `yaml:"container" validate:"required,startswith=/"`
}

// String renders the volume the way `docker run -v` expects it
func (v Volume) String() string {
	return v.HostPath + ":" + v.ContainerPath
}

// EnvironmentConfig describes the notebook container
type EnvironmentConfig struct {
	ImageName     string        `yaml:"image_name" validate:"required,imageref"`
	Port          int           `yaml:"port" validate:"required,min=1,max=65535"`
	ContainerPort int           `yaml:"container_port" validate:"min=1,max=65535"`
	Volumes       []Volume      `yaml:"volumes" validate:"dive"`
	Dockerfile    string        `yaml:"dockerfile" validate:"required"`
	BuildContext  string        `yaml:"build_context" validate:"required,hostpath"`
	ContainerName string        `yaml:"container_name" validate:"required,containername"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout" validate:"gt=0"`
}

var (
	imageRefPattern      = regexp.MustCompile(`^[a-z0-9]+([._/-][a-z0-9]+)*(:[A-Za-z0-9_][A-Za-z0-9_.-]{0,127})?$`)
	containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	invalidNameChars     = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("hostpath", isExistingPath)
	v.RegisterValidation("imageref", isImageRef)
	v.RegisterValidation("containername", isContainerName)

	// Report YAML keys in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func isExistingPath(fl validator.FieldLevel) bool {
	_, err := os.Stat(fl.Field().String())
	return err == nil
}

func isImageRef(fl validator.FieldLevel) bool {
	return imageRefPattern.MatchString(fl.Field().String())
}

func isContainerName(fl validator.FieldLevel) bool {
	return containerNamePattern.MatchString(fl.Field().String())
}

// LoadEnvironmentConfig reads the YAML environment file, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadEnvironmentConfig(path string) (*EnvironmentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("cannot read environment file", err).WithContext("path", path)
	}

	var cfg EnvironmentConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, apperrors.NewConfigError("cannot parse environment file", err).WithContext("path", path)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset optional fields
func (c *EnvironmentConfig) ApplyDefaults() {
	if c.ContainerPort == 0 {
		c.ContainerPort = DefaultContainerPort
	}
	if c.Dockerfile == "" {
		c.Dockerfile = DefaultDockerfile
	}
	if c.BuildContext == "" {
		c.BuildContext = DefaultBuildContext
	}
	if c.ContainerName == "" {
		c.ContainerName = DeriveContainerName(c.ImageName)
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
}

// Validate checks the configuration before any process is launched
func (c *EnvironmentConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewConfigError("invalid environment configuration", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, formatFieldError(fe))
		}
		return apperrors.NewConfigError("invalid environment configuration: "+strings.Join(msgs, "; "), nil).
			WithContext("fields", len(msgs))
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "EnvironmentConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "hostpath":
		return fmt.Sprintf("%s: path %q does not exist", field, fe.Value())
	case "imageref":
		return fmt.Sprintf("%s: %q is not a valid image reference", field, fe.Value())
	case "containername":
		return fmt.Sprintf("%s: %q is not a valid container name", field, fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and 65535", field)
	case "startswith":
		return field + " must be an absolute container path"
	case "gt":
		return field + " must be positive"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// DeriveContainerName turns an image reference into a container name,
// e.g. "registry/btc-forecast:latest" becomes "btc-forecast-env".
func DeriveContainerName(image string) string {
	name := image
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	name = strings.Trim(invalidNameChars.ReplaceAllString(name, "-"), "-._")
	if name == "" {
		name = "notebook"
	}
	return name + "-env"
}

// ParseVolume parses a "host:container" flag value. The last colon
// separates the two paths so drive-letter host paths work.
func ParseVolume(spec string) (Volume, error) {
	i := strings.LastIndex(spec, ":")
	if i <= 0 || i == len(spec)-1 {
		return Volume{}, fmt.Errorf("invalid volume %q (want host:container)", spec)
	}
	return Volume{HostPath: spec[:i], ContainerPath: spec[i+1:]}, nil
}

// absoluteVolumes resolves host paths for bind mounts
func absoluteVolumes(volumes []Volume) ([]Volume, error) {
	out := make([]Volume, len(volumes))
	for i, v := range volumes {
		abs, err := filepath.Abs(v.HostPath)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", v.HostPath, err)
		}
		out[i] = Volume{HostPath: abs, ContainerPath: v.ContainerPath}
	}
	return out, nil
}
