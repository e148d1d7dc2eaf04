package model

// DefaultScene is shown when the preview starts without a scene file. It is a
// template: expand it before parsing.
const DefaultScene = `render_configuration:
  samples_per_pixel: 50
  shader:
    path_tracing:
      max_depth: 50
  preview_interval_ms: 500
background_color: "0.2, 0.3, 0.5"
camera:
  vertical_fov_degrees: 40
  aperture_size: 0.05
  look_from: "0, 1.5, 8"
  look_at: "0, 0.5, 0"
world:
  - sphere:
      center: "0, -1000, 0"
      radius: 1000
      material:
        lambertian:
          albedo:
            color: "0.5, 0.5, 0.5"
  - sphere:
      center: "0, 1, 0"
      radius: 1
      material:
        glass:
          albedo:
            color: "1, 1, 1"
          index_of_refraction: 1.5
{% set count = 8 %}
{%- for i in range(end=count) %}
{%- set angle = (i + frameIndex * 0.05) * 6.2832 / count %}
  - sphere:
      center: "{{ 3 * cos(v=angle) }}, 0.4, {{ 3 * sin(v=angle) }}"
      radius: 0.4
      material:
        {%- if i % 2 == 0 %}
        metal:
          albedo:
            color: "0.8, 0.6, 0.2"
          fuzz: 0.1
        {%- else %}
        lambertian:
          albedo:
            color: "{{ 0.2 + i / count * 0.7 }}, 0.3, 0.6"
        {%- endif %}
{%- endfor %}
  - sphere:
      center: "-4, 6, 3"
      radius: 1.5
      material:
        light:
          color: "10, 10, 10"
`
